package flows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/romavesna/bausteinbot/session"
)

func authoringStateOf(t *testing.T, store *session.MemoryStore, userID int64) authoringState {
	t.Helper()
	rec, ok := store.Get(authoringKey(userID))
	if !ok {
		t.Fatal("no authoring session")
	}
	st, ok := rec.Value.(authoringState)
	if !ok {
		t.Fatalf("unexpected session value %T", rec.Value)
	}
	return st
}

func TestAuthoringRejectsNonEditor(t *testing.T) {
	engine, repo, store := fixture()
	addUser(repo, 1)

	if _, err := engine.StartAuthoring(context.Background(), 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("got %v, want ErrUnauthorized", err)
	}
	if _, ok := store.Get(authoringKey(1)); ok {
		t.Fatal("session created for unauthorized user")
	}
}

func TestAuthoringSentenceNeedsBlankMarker(t *testing.T) {
	engine, repo, store := fixture()
	addEditor(repo, 1)
	ctx := context.Background()

	if _, err := engine.StartAuthoring(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}

	renders, err := engine.AuthoringInput(ctx, 1, "Satz ohne Lücke.")
	if err == nil {
		t.Fatal("expected validation error")
	}
	var flowErr *Error
	if !errors.As(err, &flowErr) || flowErr.Code() != CodeValidation {
		t.Fatalf("got %v, want VALIDATION", err)
	}
	if len(renders) != 1 || renders[0].Text != textSentenceNeedsBlank {
		t.Fatalf("expected re-prompt, got %+v", renders)
	}

	st := authoringStateOf(t, store, 1)
	if st.Step != stepSentence || st.Draft.Sentence != "" {
		t.Fatalf("state advanced on invalid input: %+v", st)
	}
}

func TestAuthoringHappyPath(t *testing.T) {
	engine, repo, store := fixture()
	addEditor(repo, 1)
	ctx := context.Background()

	if _, err := engine.StartAuthoring(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	steps := []struct {
		input string
		step  authoringStep
	}{
		{"Ich warte " + BlankMarker + " den Bus.", stepCorrect},
		{"auf", stepExplanation},
		{"warten verlangt auf + Akkusativ", stepIncorrect},
		{"an, mit", stepCategory},
	}
	for _, s := range steps {
		if _, err := engine.AuthoringInput(ctx, 1, s.input); err != nil {
			t.Fatalf("input %q: %v", s.input, err)
		}
		if got := authoringStateOf(t, store, 1).Step; got != s.step {
			t.Fatalf("after %q: step %s, want %s", s.input, got, s.step)
		}
	}

	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringCategory, "1"); err != nil {
		t.Fatalf("category: %v", err)
	}
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringLevel, "2"); err != nil {
		t.Fatalf("level: %v", err)
	}
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringDone, ""); err != nil {
		t.Fatalf("done: %v", err)
	}
	if got := authoringStateOf(t, store, 1).Step; got != stepPreview {
		t.Fatalf("step %s, want preview", got)
	}

	renders, err := engine.AuthoringSelect(ctx, 1, CbAuthoringSave, "")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(renders) != 1 || renders[0].Text != textSaved {
		t.Fatalf("unexpected save renders: %+v", renders)
	}

	if len(repo.created) != 1 {
		t.Fatalf("created %d exercises, want 1", len(repo.created))
	}
	draft := repo.created[0]
	if draft.Sentence != "Ich warte "+BlankMarker+" den Bus." ||
		draft.Correct != "auf" ||
		len(draft.Incorrect) != 2 ||
		draft.CategoryID != 1 ||
		len(draft.LevelIDs) != 1 || draft.LevelIDs[0] != 2 {
		t.Fatalf("unexpected draft: %+v", draft)
	}

	if _, ok := store.Get(authoringKey(1)); ok {
		t.Fatal("session not cleared after save")
	}
}

func TestAuthoringIncorrectAnswersNeedTwo(t *testing.T) {
	engine, repo, store := fixture()
	addEditor(repo, 1)
	ctx := context.Background()

	mustStartAuthoringAt(t, engine, ctx, stepIncorrect)

	if _, err := engine.AuthoringInput(ctx, 1, "nur-eine"); err == nil {
		t.Fatal("expected validation error for single incorrect answer")
	}
	if got := authoringStateOf(t, store, 1).Step; got != stepIncorrect {
		t.Fatalf("step %s, want awaiting_incorrect_answers", got)
	}

	if _, err := engine.AuthoringInput(ctx, 1, " an , mit , "); err != nil {
		t.Fatalf("two answers: %v", err)
	}
	st := authoringStateOf(t, store, 1)
	if len(st.Draft.Incorrect) != 2 || st.Draft.Incorrect[0] != "an" || st.Draft.Incorrect[1] != "mit" {
		t.Fatalf("unexpected incorrect answers: %v", st.Draft.Incorrect)
	}
}

func TestAuthoringLevelAdjacency(t *testing.T) {
	engine, repo, store := fixture()
	addEditor(repo, 1)
	ctx := context.Background()

	mustStartAuthoringAt(t, engine, ctx, stepLevels)

	// Non-adjacent pair is rejected without advancing.
	for _, id := range []string{"1", "3"} {
		if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringLevel, id); err != nil {
			t.Fatalf("toggle %s: %v", id, err)
		}
	}
	renders, err := engine.AuthoringSelect(ctx, 1, CbAuthoringDone, "")
	if err == nil {
		t.Fatal("expected rejection for non-adjacent levels")
	}
	if len(renders) != 1 || renders[0].Text != textLevelsNotAdjacent {
		t.Fatalf("unexpected renders: %+v", renders)
	}
	if got := authoringStateOf(t, store, 1).Step; got != stepLevels {
		t.Fatalf("step %s, want awaiting_levels", got)
	}

	// Three levels are rejected regardless of adjacency.
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringLevel, "2"); err != nil {
		t.Fatalf("toggle 2: %v", err)
	}
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringDone, ""); err == nil {
		t.Fatal("expected rejection for three levels")
	}

	// Dropping back to the adjacent pair passes.
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringLevel, "3"); err != nil {
		t.Fatalf("toggle 3 off: %v", err)
	}
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringDone, ""); err != nil {
		t.Fatalf("adjacent pair rejected: %v", err)
	}
	if got := authoringStateOf(t, store, 1).Step; got != stepPreview {
		t.Fatalf("step %s, want preview", got)
	}
}

func TestAuthoringCancelClearsSession(t *testing.T) {
	engine, repo, store := fixture()
	addEditor(repo, 1)
	ctx := context.Background()

	mustStartAuthoringAt(t, engine, ctx, stepLevels)

	renders, err := engine.AuthoringSelect(ctx, 1, CbAuthoringCancel, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(renders) != 1 || !strings.Contains(renders[0].Text, "Abgebrochen") {
		t.Fatalf("unexpected cancel renders: %+v", renders)
	}
	if _, ok := store.Get(authoringKey(1)); ok {
		t.Fatal("session not cleared after cancel")
	}
	if len(repo.created) != 0 {
		t.Fatal("cancel persisted a draft")
	}
}

// mustStartAuthoringAt drives user 1's dialogue up to the given step.
func mustStartAuthoringAt(t *testing.T, engine *Engine, ctx context.Context, target authoringStep) {
	t.Helper()
	if _, err := engine.StartAuthoring(ctx, 1); err != nil {
		t.Fatalf("start: %v", err)
	}
	inputs := []struct {
		step authoringStep
		text string
	}{
		{stepCorrect, "Ich warte " + BlankMarker + " den Bus."},
		{stepExplanation, "auf"},
		{stepIncorrect, "Erklärung"},
		{stepCategory, "an, mit"},
	}
	if target == stepSentence {
		return
	}
	for _, in := range inputs {
		if _, err := engine.AuthoringInput(ctx, 1, in.text); err != nil {
			t.Fatalf("input %q: %v", in.text, err)
		}
		if in.step == target {
			return
		}
	}
	if _, err := engine.AuthoringSelect(ctx, 1, CbAuthoringCategory, "1"); err != nil {
		t.Fatalf("category: %v", err)
	}
}
