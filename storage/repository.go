package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository is the transactional access layer over Postgres.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an already connected pool.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureUser creates the user on first contact and returns the stored row.
// Existing users keep their role; only the username is refreshed.
func (r *Repository) EnsureUser(ctx context.Context, id int64, username string) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		INSERT INTO users (id, username, role)
		VALUES ($1, $2, 'user')
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username
		RETURNING id, username, role, created_at`,
		id, username)
	if err != nil {
		return User{}, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return u, nil
}

// UserByID returns ErrNotFound for unknown ids.
func (r *Repository) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := r.db.GetContext(ctx, &u,
		`SELECT id, username, role, created_at FROM users WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

// SettingsByUser returns zero-valued settings (all nil fields) when the user
// has never changed a preference.
func (r *Repository) SettingsByUser(ctx context.Context, userID int64) (UserSettings, error) {
	var s UserSettings
	err := r.db.GetContext(ctx, &s, `
		SELECT user_id, answers_count, exercises_count, level_id, training_time
		FROM user_settings WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return UserSettings{UserID: userID}, nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("settings for %d: %w", userID, err)
	}
	return s, nil
}

// SaveSettings upserts the full preference row.
func (r *Repository) SaveSettings(ctx context.Context, s UserSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, answers_count, exercises_count, level_id, training_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			answers_count = EXCLUDED.answers_count,
			exercises_count = EXCLUDED.exercises_count,
			level_id = EXCLUDED.level_id,
			training_time = EXCLUDED.training_time`,
		s.UserID, s.AnswersCount, s.ExercisesCount, s.LevelID, s.TrainingTime)
	if err != nil {
		return fmt.Errorf("save settings for %d: %w", s.UserID, err)
	}
	return nil
}

// Levels returns all levels ordered by id; consecutive ids encode adjacency.
func (r *Repository) Levels(ctx context.Context) ([]Level, error) {
	var levels []Level
	if err := r.db.SelectContext(ctx, &levels,
		`SELECT id, name FROM levels ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return levels, nil
}

// Categories returns all categories ordered by id.
func (r *Repository) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := r.db.SelectContext(ctx, &cats,
		`SELECT id, name FROM categories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CountExercisesForLevel counts the eligible pool for a level.
func (r *Repository) CountExercisesForLevel(ctx context.Context, levelID int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM exercise_levels WHERE level_id = $1`, levelID)
	if err != nil {
		return 0, fmt.Errorf("count exercises for level %d: %w", levelID, err)
	}
	return n, nil
}

// ExerciseIDsForLevel lists the eligible pool for a level.
func (r *Repository) ExerciseIDsForLevel(ctx context.Context, levelID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT exercise_id FROM exercise_levels WHERE level_id = $1 ORDER BY exercise_id`, levelID)
	if err != nil {
		return nil, fmt.Errorf("exercise ids for level %d: %w", levelID, err)
	}
	return ids, nil
}

// ExerciseDetail loads an exercise with its answers, category name and levels.
func (r *Repository) ExerciseDetail(ctx context.Context, id int64) (ExerciseDetail, error) {
	var d ExerciseDetail
	err := r.db.GetContext(ctx, &d.Exercise, `
		SELECT id, sentence, explanation, category_id, created_by, created_at
		FROM exercises WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ExerciseDetail{}, ErrNotFound
	}
	if err != nil {
		return ExerciseDetail{}, fmt.Errorf("exercise %d: %w", id, err)
	}

	if err := r.db.GetContext(ctx, &d.CategoryName,
		`SELECT name FROM categories WHERE id = $1`, d.CategoryID); err != nil {
		return ExerciseDetail{}, fmt.Errorf("exercise %d category: %w", id, err)
	}

	var answers []Answer
	if err := r.db.SelectContext(ctx, &answers, `
		SELECT id, exercise_id, text, correct
		FROM answers WHERE exercise_id = $1 ORDER BY id`, id); err != nil {
		return ExerciseDetail{}, fmt.Errorf("exercise %d answers: %w", id, err)
	}
	for _, a := range answers {
		if a.Correct {
			d.Correct = a.Text
		} else {
			d.Incorrect = append(d.Incorrect, a.Text)
		}
	}
	if d.Correct == "" {
		return ExerciseDetail{}, fmt.Errorf("exercise %d: no correct answer stored", id)
	}

	if err := r.db.SelectContext(ctx, &d.Levels, `
		SELECT l.id, l.name FROM levels l
		JOIN exercise_levels el ON el.level_id = l.id
		WHERE el.exercise_id = $1 ORDER BY l.id`, id); err != nil {
		return ExerciseDetail{}, fmt.Errorf("exercise %d levels: %w", id, err)
	}

	return d, nil
}

// ExercisesPage returns one page ordered by sentence text plus the total count.
func (r *Repository) ExercisesPage(ctx context.Context, offset, limit int) ([]Exercise, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM exercises`); err != nil {
		return nil, 0, fmt.Errorf("count exercises: %w", err)
	}
	var items []Exercise
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, sentence, explanation, category_id, created_by, created_at
		FROM exercises ORDER BY sentence OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list exercises: %w", err)
	}
	return items, total, nil
}

// CreateExercise persists the draft with its answers and level links in a
// single transaction.
func (r *Repository) CreateExercise(ctx context.Context, draft ExerciseDraft) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create exercise: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.GetContext(ctx, &id, `
		INSERT INTO exercises (sentence, explanation, category_id, created_by)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		draft.Sentence, draft.Explanation, draft.CategoryID, draft.CreatedBy)
	if err != nil {
		return 0, fmt.Errorf("insert exercise: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO answers (exercise_id, text, correct) VALUES ($1, $2, TRUE)`,
		id, draft.Correct); err != nil {
		return 0, fmt.Errorf("insert correct answer: %w", err)
	}
	for _, text := range draft.Incorrect {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (exercise_id, text, correct) VALUES ($1, $2, FALSE)`,
			id, text); err != nil {
			return 0, fmt.Errorf("insert incorrect answer: %w", err)
		}
	}
	for _, levelID := range draft.LevelIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exercise_levels (exercise_id, level_id) VALUES ($1, $2)`,
			id, levelID); err != nil {
			return 0, fmt.Errorf("link level %d: %w", levelID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit create exercise: %w", err)
	}
	return id, nil
}

// TouchCategoryStat bumps the total-attempt counter, creating the row lazily.
func (r *Repository) TouchCategoryStat(ctx context.Context, userID, categoryID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_category_stats (user_id, category_id, correct_attempts, total_attempts)
		VALUES ($1, $2, 0, 1)
		ON CONFLICT (user_id, category_id) DO UPDATE SET
			total_attempts = user_category_stats.total_attempts + 1`,
		userID, categoryID)
	if err != nil {
		return fmt.Errorf("touch stat %d/%d: %w", userID, categoryID, err)
	}
	return nil
}

// RecordCorrectAnswer bumps the correct-attempt counter.
func (r *Repository) RecordCorrectAnswer(ctx context.Context, userID, categoryID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_category_stats (user_id, category_id, correct_attempts, total_attempts)
		VALUES ($1, $2, 1, 0)
		ON CONFLICT (user_id, category_id) DO UPDATE SET
			correct_attempts = user_category_stats.correct_attempts + 1`,
		userID, categoryID)
	if err != nil {
		return fmt.Errorf("record correct %d/%d: %w", userID, categoryID, err)
	}
	return nil
}

// CategoryStats lists a user's counters joined with category names.
func (r *Repository) CategoryStats(ctx context.Context, userID int64) ([]CategoryStat, error) {
	var stats []CategoryStat
	err := r.db.SelectContext(ctx, &stats, `
		SELECT s.category_id, c.name AS category_name, s.correct_attempts, s.total_attempts
		FROM user_category_stats s
		JOIN categories c ON c.id = s.category_id
		WHERE s.user_id = $1 ORDER BY c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("stats for %d: %w", userID, err)
	}
	return stats, nil
}

// InsertAccessCodes bulk-inserts unused codes, skipping duplicates, and
// returns how many rows were actually inserted.
func (r *Repository) InsertAccessCodes(ctx context.Context, codes []string) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO access_codes (code, used)
		SELECT DISTINCT c, FALSE FROM unnest($1::text[]) AS c
		ON CONFLICT (code) DO NOTHING`,
		pq.Array(codes))
	if err != nil {
		return 0, fmt.Errorf("insert access codes: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert access codes count: %w", err)
	}
	return int(inserted), nil
}
