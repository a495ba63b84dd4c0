package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

func trainingStateOf(t *testing.T, store *session.MemoryStore, userID int64) trainingState {
	t.Helper()
	rec, ok := store.Get(trainingKey(userID))
	if !ok {
		t.Fatal("no training session")
	}
	st, ok := rec.Value.(trainingState)
	if !ok {
		t.Fatalf("unexpected session value %T", rec.Value)
	}
	return st
}

// answerCurrent submits the current question's answer, correct or not.
func answerCurrent(t *testing.T, engine *Engine, store *session.MemoryStore, userID int64, correct bool) []Render {
	t.Helper()
	st := trainingStateOf(t, store, userID)
	optIdx := -1
	for i, opt := range st.Options {
		if (opt == st.CorrectText) == correct {
			optIdx = i
			break
		}
	}
	if optIdx < 0 {
		t.Fatalf("no %v option among %v", correct, st.Options)
	}
	renders, err := engine.TrainingSelect(context.Background(), userID, CbTrainingAnswer,
		fmt.Sprintf("%d:%d", st.Index, optIdx))
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	return renders
}

func TestTrainingLevelOfferFiltersSmallPools(t *testing.T) {
	engine, repo, _ := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 8)
	repo.seedExercises(3, 1, 3)

	renders, err := engine.StartTraining(context.Background(), 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(renders) != 1 || len(renders[0].Keyboard) != 1 {
		t.Fatalf("unexpected renders: %+v", renders)
	}
	row := renders[0].Keyboard[0]
	if len(row) != 1 || row[0].Label != "B1" {
		t.Fatalf("offered levels = %+v, want only B1", row)
	}
}

func TestTrainingFullRoundTrip(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 8)
	ctx := context.Background()

	if _, err := engine.StartTraining(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingLevel, "2"); err != nil {
		t.Fatalf("level: %v", err)
	}
	renders, err := engine.TrainingSelect(ctx, 1, CbTrainingCount, "5")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if !strings.HasPrefix(renders[0].Text, "1/5.") {
		t.Fatalf("first question = %q", renders[0].Text)
	}

	st := trainingStateOf(t, store, 1)
	if len(st.Queue) != 5 || st.Step != stepInProgress {
		t.Fatalf("unexpected state: %+v", st)
	}
	if len(st.Options) != training.DefaultAnswersCount {
		t.Fatalf("got %d options, want %d", len(st.Options), training.DefaultAnswersCount)
	}

	// Answer three correctly, two wrong.
	var last []Render
	for i := 0; i < 5; i++ {
		last = answerCurrent(t, engine, store, 1, i < 3)
	}

	summary := last[len(last)-1]
	if !strings.Contains(summary.Text, "3 von 5") || !strings.Contains(summary.Text, "60%") {
		t.Fatalf("summary = %q", summary.Text)
	}
	if _, ok := store.Get(trainingKey(1)); ok {
		t.Fatal("session not cleared after completion")
	}

	stat := repo.stats[statKey{1, 1}]
	if stat == nil || stat.Total != 5 || stat.Correct != 3 {
		t.Fatalf("stat = %+v, want 3/5", stat)
	}
}

func TestTrainingEntryShortcutsFromSettings(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 12)
	count := 5
	levelID := int64(2)
	repo.settings[1] = storage.UserSettings{UserID: 1, LevelID: &levelID, ExercisesCount: &count}

	renders, err := engine.StartTraining(context.Background(), 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasPrefix(renders[0].Text, "1/5.") {
		t.Fatalf("expected direct first question, got %q", renders[0].Text)
	}
	st := trainingStateOf(t, store, 1)
	if st.Step != stepInProgress || st.LevelID != 2 || len(st.Queue) != 5 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestTrainingLevelOnlyShortcutAsksForCount(t *testing.T) {
	engine, repo, _ := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 7)
	levelID := int64(2)
	repo.settings[1] = storage.UserSettings{UserID: 1, LevelID: &levelID}

	renders, err := engine.StartTraining(context.Background(), 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if renders[0].Text != textChooseCount {
		t.Fatalf("got %q, want count prompt", renders[0].Text)
	}
	// Pool of 7 admits only the 5-exercise option.
	row := renders[0].Keyboard[0]
	if len(row) != 1 || row[0].Data != "5" {
		t.Fatalf("count options = %+v, want only 5", row)
	}
}

func TestTrainingRestartDiscardsInProgressRun(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 8)
	ctx := context.Background()

	if _, err := engine.StartTraining(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingLevel, "2"); err != nil {
		t.Fatalf("level: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingCount, "5"); err != nil {
		t.Fatalf("count: %v", err)
	}
	answerCurrent(t, engine, store, 1, true)

	// Second invocation starts over from level selection.
	if _, err := engine.StartTraining(ctx, 1); err != nil {
		t.Fatalf("restart: %v", err)
	}
	st := trainingStateOf(t, store, 1)
	if st.Step != stepSelectingLevel || st.Correct != 0 || len(st.Queue) != 0 {
		t.Fatalf("restart kept prior run: %+v", st)
	}
}

func TestTrainingStaleAnswerIsNeutral(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 8)
	ctx := context.Background()

	if _, err := engine.StartTraining(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingLevel, "2"); err != nil {
		t.Fatalf("level: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingCount, "5"); err != nil {
		t.Fatalf("count: %v", err)
	}
	answerCurrent(t, engine, store, 1, true)

	// Replay of the first question's button must not double-count.
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingAnswer, "0:0"); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("got %v, want ErrStaleSession", err)
	}
	st := trainingStateOf(t, store, 1)
	if st.Index != 1 || st.Correct != 1 {
		t.Fatalf("stale answer mutated state: %+v", st)
	}

	// Answering after the session is gone fails gracefully too.
	store.Clear(trainingKey(1))
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingAnswer, "1:0"); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("got %v, want ErrStaleSession", err)
	}
}

func TestTrainingAnswerRepoFailureKeepsQuestionOpen(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 8)
	ctx := context.Background()

	if _, err := engine.StartTraining(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingLevel, "2"); err != nil {
		t.Fatalf("level: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingCount, "5"); err != nil {
		t.Fatalf("count: %v", err)
	}

	st := trainingStateOf(t, store, 1)
	optIdx := -1
	for i, opt := range st.Options {
		if opt == st.CorrectText {
			optIdx = i
			break
		}
	}
	payload := fmt.Sprintf("%d:%d", st.Index, optIdx)

	repo.recordErr = errors.New("db down")
	_, err := engine.TrainingSelect(ctx, 1, CbTrainingAnswer, payload)
	var flowErr *Error
	if !errors.As(err, &flowErr) || flowErr.Code() != CodeRepository {
		t.Fatalf("got %v, want repository error", err)
	}

	// The session must still point at the same question.
	after := trainingStateOf(t, store, 1)
	if after.Index != st.Index || after.Correct != st.Correct {
		t.Fatalf("session advanced despite failed write: %+v", after)
	}
	if stat := repo.stats[statKey{1, 1}]; stat == nil || stat.Correct != 0 {
		t.Fatalf("stat = %+v, want no correct attempts", stat)
	}

	// Retrying the identical press succeeds once the store recovers.
	repo.recordErr = nil
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingAnswer, payload); err != nil {
		t.Fatalf("retry: %v", err)
	}
	after = trainingStateOf(t, store, 1)
	if after.Index != st.Index+1 || after.Correct != st.Correct+1 {
		t.Fatalf("retry did not advance: %+v", after)
	}
	if stat := repo.stats[statKey{1, 1}]; stat == nil || stat.Correct != 1 {
		t.Fatalf("stat = %+v, want one correct attempt", stat)
	}
}

func TestTrainingAttemptCountFailureKeepsCountStep(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)
	repo.seedExercises(2, 1, 8)
	ctx := context.Background()

	if _, err := engine.StartTraining(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.TrainingSelect(ctx, 1, CbTrainingLevel, "2"); err != nil {
		t.Fatalf("level: %v", err)
	}

	repo.touchErr = errors.New("db down")
	_, err := engine.TrainingSelect(ctx, 1, CbTrainingCount, "5")
	var flowErr *Error
	if !errors.As(err, &flowErr) || flowErr.Code() != CodeRepository {
		t.Fatalf("got %v, want repository error", err)
	}
	st := trainingStateOf(t, store, 1)
	if st.Step != stepSelectingCount {
		t.Fatalf("count failure moved the session to %q", st.Step)
	}

	repo.touchErr = nil
	renders, err := engine.TrainingSelect(ctx, 1, CbTrainingCount, "5")
	if err != nil {
		t.Fatalf("retry count: %v", err)
	}
	if !strings.HasPrefix(renders[0].Text, "1/5.") {
		t.Fatalf("first question = %q", renders[0].Text)
	}
}
