// Package storage provides durable entities and their Postgres repository.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("storage: not found")

// Role gates which dialogues a user may enter.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Editor reports whether the role may use authoring dialogues.
func (r Role) Editor() bool {
	return r == RoleEditor || r == RoleAdmin
}

// User is created on first contact and never deleted.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	Role      Role      `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

// AccessCode is consumed at most once.
type AccessCode struct {
	ID     int64  `db:"id"`
	Code   string `db:"code"`
	Used   bool   `db:"used"`
	UsedBy *int64 `db:"used_by"`
}

// Level is an ordered proficiency tier; ids are consecutive so that adjacency
// checks can compare them directly.
type Level struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Category is the owning taxonomy of an exercise.
type Category struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Exercise is a sentence template with exactly one blank marker.
type Exercise struct {
	ID          int64     `db:"id"`
	Sentence    string    `db:"sentence"`
	Explanation string    `db:"explanation"`
	CategoryID  int64     `db:"category_id"`
	CreatedBy   int64     `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
}

// Answer belongs to exactly one exercise.
type Answer struct {
	ID         int64  `db:"id"`
	ExerciseID int64  `db:"exercise_id"`
	Text       string `db:"text"`
	Correct    bool   `db:"correct"`
}

// ExerciseDetail is an exercise joined with its answers, category and levels.
type ExerciseDetail struct {
	Exercise
	CategoryName string
	Correct      string
	Incorrect    []string
	Levels       []Level
}

// ExerciseDraft carries the fields accumulated by the authoring dialogue.
type ExerciseDraft struct {
	Sentence    string
	Correct     string
	Explanation string
	Incorrect   []string
	CategoryID  int64
	LevelIDs    []int64
	CreatedBy   int64
}

// UserSettings holds per-user training preferences. Nil fields mean "not set".
type UserSettings struct {
	UserID         int64   `db:"user_id"`
	AnswersCount   *int    `db:"answers_count"`
	ExercisesCount *int    `db:"exercises_count"`
	LevelID        *int64  `db:"level_id"`
	TrainingTime   *string `db:"training_time"`
}

// CategoryStat is one per-user/per-category counter pair.
type CategoryStat struct {
	CategoryID   int64  `db:"category_id"`
	CategoryName string `db:"category_name"`
	Correct      int    `db:"correct_attempts"`
	Total        int    `db:"total_attempts"`
}
