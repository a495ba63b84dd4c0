package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/samber/lo"

	"github.com/romavesna/bausteinbot/core/logger"
	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

// Callback uniques emitted by the training keyboards.
const (
	CbTrainingLevel  = "train_level"
	CbTrainingCount  = "train_count"
	CbTrainingAnswer = "train_answer"
)

const (
	stepSelectingLevel = "selecting_level"
	stepSelectingCount = "selecting_count"
	stepInProgress     = "in_progress"
)

// trainingState is the session blob for one quiz run. Queue is fixed at draw
// time; Options mirror the keyboard of the currently presented question so a
// late answer can be matched against exactly what the user saw.
type trainingState struct {
	Step        string
	LevelID     int64
	Queue       []int64
	Index       int
	Correct     int
	Options     []string
	CorrectText string
	Explanation string
	CategoryID  int64
}

func trainingKey(userID int64) session.Key {
	return session.Key{UserID: userID, Flow: session.FlowTraining}
}

// StartTraining begins a quiz. Stored preferences shortcut the selection
// steps; a second invocation discards any run already in progress.
func (e *Engine) StartTraining(ctx context.Context, userID int64) ([]Render, error) {
	settings, err := e.repo.SettingsByUser(ctx, userID)
	if err != nil {
		return nil, repoErr("settings", err)
	}

	if settings.LevelID != nil {
		pool, err := e.repo.ExerciseIDsForLevel(ctx, *settings.LevelID)
		if err != nil {
			return nil, repoErr("level pool", err)
		}
		if len(pool) >= training.MinPoolSize {
			if settings.ExercisesCount != nil && *settings.ExercisesCount <= len(pool) {
				return e.beginRun(ctx, userID, *settings.LevelID, *settings.ExercisesCount, pool)
			}
			st := trainingState{Step: stepSelectingCount, LevelID: *settings.LevelID}
			e.sessions.Put(trainingKey(userID), st)
			return []Render{renderCountChoice(len(pool))}, nil
		}
		// Preferred level has no usable pool; fall back to manual selection.
	}

	render, err := e.renderLevelOffer(ctx)
	if err != nil {
		return nil, err
	}
	e.sessions.Put(trainingKey(userID), trainingState{Step: stepSelectingLevel})
	return []Render{render}, nil
}

// TrainingSelect advances the quiz on a button action.
func (e *Engine) TrainingSelect(ctx context.Context, userID int64, action, payload string) ([]Render, error) {
	rec, ok := e.sessions.Get(trainingKey(userID))
	if !ok {
		return nil, ErrStaleSession
	}
	st, ok := rec.Value.(trainingState)
	if !ok {
		return nil, ErrStaleSession
	}

	switch {
	case action == CbTrainingLevel && st.Step == stepSelectingLevel:
		return e.trainingPickLevel(ctx, userID, rec.Version, payload)
	case action == CbTrainingCount && st.Step == stepSelectingCount:
		return e.trainingPickCount(ctx, userID, st, rec.Version, payload)
	case action == CbTrainingAnswer && st.Step == stepInProgress:
		return e.trainingAnswer(ctx, userID, st, rec.Version, payload)
	default:
		// Button from an earlier question or a superseded run.
		return nil, ErrStaleSession
	}
}

func (e *Engine) trainingPickLevel(ctx context.Context, userID int64, version uint64, payload string) ([]Render, error) {
	levelID, err := parseID(payload)
	if err != nil {
		return nil, validationErr("malformed level token")
	}
	pool, err := e.repo.ExerciseIDsForLevel(ctx, levelID)
	if err != nil {
		return nil, repoErr("level pool", err)
	}
	if len(pool) < training.MinPoolSize {
		e.sessions.Clear(trainingKey(userID))
		return []Render{edit(textStaleAction)}, notFoundErr("level pool shrank", nil)
	}

	settings, err := e.repo.SettingsByUser(ctx, userID)
	if err != nil {
		return nil, repoErr("settings", err)
	}
	if settings.ExercisesCount != nil && *settings.ExercisesCount <= len(pool) {
		return e.beginRun(ctx, userID, levelID, *settings.ExercisesCount, pool)
	}

	st := trainingState{Step: stepSelectingCount, LevelID: levelID}
	if _, err := e.sessions.CompareAndSwap(trainingKey(userID), st, version); err != nil {
		return nil, ErrStaleSession
	}
	render := renderCountChoice(len(pool))
	render.Mode = ModeEdit
	return []Render{render}, nil
}

func (e *Engine) trainingPickCount(ctx context.Context, userID int64, st trainingState, version uint64, payload string) ([]Render, error) {
	count, err := strconv.Atoi(payload)
	if err != nil || !lo.Contains(training.CountOptions, count) {
		return nil, validationErr("malformed count token")
	}
	pool, err := e.repo.ExerciseIDsForLevel(ctx, st.LevelID)
	if err != nil {
		return nil, repoErr("level pool", err)
	}
	renders, err := e.beginRun(ctx, userID, st.LevelID, count, pool)
	if err != nil {
		return nil, err
	}
	if len(renders) > 0 {
		renders[0].Mode = ModeReplace
	}
	return renders, nil
}

// beginRun draws the exercise queue and presents the first question. It
// overwrites any previous session for the user unconditionally.
func (e *Engine) beginRun(ctx context.Context, userID, levelID int64, count int, pool []int64) ([]Render, error) {
	queue, err := e.selector.DrawExerciseSet(pool, count)
	if err != nil {
		e.sessions.Clear(trainingKey(userID))
		if errors.Is(err, training.ErrInsufficientPool) {
			logger.LogEvent(ctx, logger.Flow, slog.LevelWarn, "training.aborted",
				slog.Int64("level_id", levelID),
				slog.Int("count", count),
				slog.Int("pool", len(pool)))
			return []Render{send(textSessionAborted)}, poolErr(err)
		}
		return nil, repoErr("draw exercise set", err)
	}

	st := trainingState{
		Step:    stepInProgress,
		LevelID: levelID,
		Queue:   queue,
	}
	return e.presentQuestion(ctx, userID, st, func(ns trainingState) error {
		e.sessions.Put(trainingKey(userID), ns)
		return nil
	})
}

// presentQuestion renders the question at st.Index, or the completion summary
// once the queue is exhausted. Repository writes happen before commit stores
// the new state, so a failed write leaves the previous session record in
// place and the triggering action can be retried.
func (e *Engine) presentQuestion(ctx context.Context, userID int64, st trainingState, commit func(trainingState) error) ([]Render, error) {
	if st.Index >= len(st.Queue) {
		e.sessions.Clear(trainingKey(userID))
		return []Render{send(formatSummary(st.Correct, len(st.Queue)))}, nil
	}

	detail, err := e.repo.ExerciseDetail(ctx, st.Queue[st.Index])
	if errors.Is(err, storage.ErrNotFound) {
		e.sessions.Clear(trainingKey(userID))
		return []Render{send(textSessionAborted)}, notFoundErr("queued exercise vanished", err)
	}
	if err != nil {
		return nil, repoErr("exercise detail", err)
	}

	settings, err := e.repo.SettingsByUser(ctx, userID)
	if err != nil {
		return nil, repoErr("settings", err)
	}
	answersCount := training.DefaultAnswersCount
	if settings.AnswersCount != nil {
		answersCount = *settings.AnswersCount
	}

	distractors := e.selector.DrawDistractors(detail.Incorrect, answersCount-1)
	st.Options = e.selector.ShuffleOptions(detail.Correct, distractors)
	st.CorrectText = detail.Correct
	st.Explanation = detail.Explanation
	st.CategoryID = detail.CategoryID

	// Presenting a question counts as an attempt.
	if err := e.repo.TouchCategoryStat(ctx, userID, detail.CategoryID); err != nil {
		return nil, repoErr("count attempt", err)
	}
	if err := commit(st); err != nil {
		return nil, ErrStaleSession
	}

	rows := lo.Map(st.Options, func(opt string, i int) []Button {
		return []Button{{
			Label:  opt,
			Unique: CbTrainingAnswer,
			Data:   fmt.Sprintf("%d:%d", st.Index, i),
		}}
	})
	return []Render{send(formatQuestion(st.Index, len(st.Queue), detail.Sentence), rows...)}, nil
}

// trainingAnswer scores a selected option. The payload pins the question
// index, so a double-delivered or outdated button press is a neutral no-op.
func (e *Engine) trainingAnswer(ctx context.Context, userID int64, st trainingState, version uint64, payload string) ([]Render, error) {
	parts := strings.SplitN(payload, ":", 2)
	if len(parts) != 2 {
		return nil, validationErr("malformed answer token")
	}
	index, err1 := strconv.Atoi(parts[0])
	optIdx, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return nil, validationErr("malformed answer token")
	}
	if index != st.Index || optIdx < 0 || optIdx >= len(st.Options) {
		return nil, ErrStaleSession
	}

	correct := st.Options[optIdx] == st.CorrectText
	feedback := formatFeedback(correct, st.CorrectText, st.Explanation)

	if correct {
		// Recorded before the session advances; a failed write keeps the
		// question open so the same press can be retried.
		if err := e.repo.RecordCorrectAnswer(ctx, userID, st.CategoryID); err != nil {
			return nil, repoErr("count correct answer", err)
		}
		st.Correct++
	}
	st.Index++

	renders := []Render{edit(feedback)}
	next, err := e.presentQuestion(ctx, userID, st, func(ns trainingState) error {
		_, err := e.sessions.CompareAndSwap(trainingKey(userID), ns, version)
		return err
	})
	if err != nil {
		return renders, err
	}
	return append(renders, next...), nil
}

func (e *Engine) renderLevelOffer(ctx context.Context) (Render, error) {
	levels, err := e.repo.Levels(ctx)
	if err != nil {
		return Render{}, repoErr("levels", err)
	}

	var buttons []Button
	for _, l := range levels {
		n, err := e.repo.CountExercisesForLevel(ctx, l.ID)
		if err != nil {
			return Render{}, repoErr("count level pool", err)
		}
		if n < training.MinPoolSize {
			continue
		}
		buttons = append(buttons, Button{Label: l.Name, Unique: CbTrainingLevel, Data: fmt.Sprint(l.ID)})
	}
	if len(buttons) == 0 {
		return send(textNoLevels), nil
	}
	return send(textChooseLevel, lo.Chunk(buttons, 2)...), nil
}

func renderCountChoice(poolSize int) Render {
	buttons := lo.FilterMap(training.CountOptions, func(n int, _ int) (Button, bool) {
		return Button{Label: fmt.Sprint(n), Unique: CbTrainingCount, Data: fmt.Sprint(n)}, n <= poolSize
	})
	return send(textChooseCount, buttons)
}
