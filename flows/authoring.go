package flows

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"log/slog"

	"github.com/samber/lo"

	"github.com/romavesna/bausteinbot/core/logger"
	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
)

// Authoring dialogue steps.
type authoringStep string

const (
	stepSentence    authoringStep = "awaiting_sentence"
	stepCorrect     authoringStep = "awaiting_correct_answer"
	stepExplanation authoringStep = "awaiting_explanation"
	stepIncorrect   authoringStep = "awaiting_incorrect_answers"
	stepCategory    authoringStep = "awaiting_category"
	stepLevels      authoringStep = "awaiting_levels"
	stepPreview     authoringStep = "preview"
)

// Callback uniques emitted by the authoring keyboards.
const (
	CbAuthoringCategory = "auth_cat"
	CbAuthoringLevel    = "auth_lvl"
	CbAuthoringDone     = "auth_done"
	CbAuthoringSave     = "auth_save"
	CbAuthoringCancel   = "auth_cancel"
)

// authoringState is the session blob for the authoring dialogue.
type authoringState struct {
	Step  authoringStep
	Draft storage.ExerciseDraft
}

func authoringKey(userID int64) session.Key {
	return session.Key{UserID: userID, Flow: session.FlowAuthoring}
}

// StartAuthoring begins a fresh authoring dialogue for an editor, discarding
// any half-finished draft for the same user.
func (e *Engine) StartAuthoring(ctx context.Context, userID int64) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	e.sessions.Put(authoringKey(userID), authoringState{
		Step:  stepSentence,
		Draft: storage.ExerciseDraft{CreatedBy: userID},
	})
	return []Render{send(textAskSentence)}, nil
}

// AuthoringInput feeds free text into the dialogue's current step. Invalid
// input re-prompts without advancing.
func (e *Engine) AuthoringInput(ctx context.Context, userID int64, text string) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	rec, ok := e.sessions.Get(authoringKey(userID))
	if !ok {
		return nil, ErrStaleSession
	}
	st, ok := rec.Value.(authoringState)
	if !ok {
		return nil, ErrStaleSession
	}

	text = strings.TrimSpace(text)

	var renders []Render
	switch st.Step {
	case stepSentence:
		if strings.Count(text, BlankMarker) != 1 {
			return []Render{send(textSentenceNeedsBlank)}, validationErr("sentence without blank marker")
		}
		st.Draft.Sentence = text
		st.Step = stepCorrect
		renders = []Render{send(textAskCorrect)}

	case stepCorrect:
		if text == "" {
			return []Render{send(textAskCorrect)}, validationErr("empty correct answer")
		}
		st.Draft.Correct = text
		st.Step = stepExplanation
		renders = []Render{send(textAskExplanation)}

	case stepExplanation:
		if text == "" {
			return []Render{send(textAskExplanation)}, validationErr("empty explanation")
		}
		st.Draft.Explanation = text
		st.Step = stepIncorrect
		renders = []Render{send(textAskIncorrect)}

	case stepIncorrect:
		incorrect := splitList(text)
		if len(incorrect) < 2 {
			return []Render{send(textIncorrectTooFew)}, validationErr("fewer than two incorrect answers")
		}
		st.Draft.Incorrect = incorrect
		st.Step = stepCategory
		render, err := e.renderCategoryChoice(ctx)
		if err != nil {
			return nil, err
		}
		renders = []Render{render}

	default:
		// Structured-action steps reject free text and re-render their choice.
		render, rerr := e.renderStepPrompt(ctx, st)
		if rerr != nil {
			return nil, rerr
		}
		return []Render{render}, validationErr("text during selection step")
	}

	if err := e.casAuthoring(userID, st, rec.Version); err != nil {
		return nil, err
	}
	return renders, nil
}

// AuthoringSelect feeds a button action into the dialogue.
func (e *Engine) AuthoringSelect(ctx context.Context, userID int64, action, payload string) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	rec, ok := e.sessions.Get(authoringKey(userID))
	if !ok {
		return nil, ErrStaleSession
	}
	st, ok := rec.Value.(authoringState)
	if !ok {
		return nil, ErrStaleSession
	}

	switch {
	case action == CbAuthoringCategory && st.Step == stepCategory:
		return e.authoringPickCategory(ctx, userID, st, rec.Version, payload)
	case action == CbAuthoringLevel && st.Step == stepLevels:
		return e.authoringToggleLevel(ctx, userID, st, rec.Version, payload)
	case action == CbAuthoringDone && st.Step == stepLevels:
		return e.authoringLevelsDone(ctx, userID, st, rec.Version)
	case action == CbAuthoringSave && st.Step == stepPreview:
		return e.authoringSave(ctx, userID, st)
	case action == CbAuthoringCancel:
		e.sessions.Clear(authoringKey(userID))
		return []Render{edit(textCancelled)}, nil
	default:
		return nil, validationErr(fmt.Sprintf("action %s in step %s", action, st.Step))
	}
}

func (e *Engine) authoringPickCategory(ctx context.Context, userID int64, st authoringState, version uint64, payload string) ([]Render, error) {
	categoryID, err := parseID(payload)
	if err != nil {
		return nil, validationErr("malformed category token")
	}
	categories, err := e.repo.Categories(ctx)
	if err != nil {
		return nil, repoErr("categories", err)
	}
	if _, ok := lo.Find(categories, func(c storage.Category) bool { return c.ID == categoryID }); !ok {
		e.sessions.Clear(authoringKey(userID))
		return []Render{edit(textStaleAction)}, notFoundErr("category vanished", nil)
	}

	st.Draft.CategoryID = categoryID
	st.Step = stepLevels
	if err := e.casAuthoring(userID, st, version); err != nil {
		return nil, err
	}
	render, err := e.renderLevelChoice(ctx, st.Draft.LevelIDs)
	if err != nil {
		return nil, err
	}
	render.Mode = ModeEdit
	return []Render{render}, nil
}

func (e *Engine) authoringToggleLevel(ctx context.Context, userID int64, st authoringState, version uint64, payload string) ([]Render, error) {
	levelID, err := parseID(payload)
	if err != nil {
		return nil, validationErr("malformed level token")
	}
	if lo.Contains(st.Draft.LevelIDs, levelID) {
		st.Draft.LevelIDs = lo.Without(st.Draft.LevelIDs, levelID)
	} else {
		st.Draft.LevelIDs = append(st.Draft.LevelIDs, levelID)
	}
	if err := e.casAuthoring(userID, st, version); err != nil {
		return nil, err
	}
	render, err := e.renderLevelChoice(ctx, st.Draft.LevelIDs)
	if err != nil {
		return nil, err
	}
	render.Mode = ModeEdit
	return []Render{render}, nil
}

func (e *Engine) authoringLevelsDone(ctx context.Context, userID int64, st authoringState, version uint64) ([]Render, error) {
	switch {
	case len(st.Draft.LevelIDs) == 0:
		return []Render{send(textLevelsEmpty)}, validationErr("no levels selected")
	case len(st.Draft.LevelIDs) > 2:
		return []Render{send(textLevelsTooMany)}, validationErr("more than two levels selected")
	case len(st.Draft.LevelIDs) == 2 && !adjacent(st.Draft.LevelIDs[0], st.Draft.LevelIDs[1]):
		return []Render{send(textLevelsNotAdjacent)}, validationErr("levels not adjacent")
	}

	st.Step = stepPreview
	if err := e.casAuthoring(userID, st, version); err != nil {
		return nil, err
	}

	render, err := e.renderPreview(ctx, st.Draft)
	if err != nil {
		return nil, err
	}
	return []Render{render}, nil
}

func (e *Engine) authoringSave(ctx context.Context, userID int64, st authoringState) ([]Render, error) {
	id, err := e.repo.CreateExercise(ctx, st.Draft)
	if err != nil {
		// Session stays in preview so the same save action can be retried.
		return []Render{send(textTransientFailure)}, repoErr("create exercise", err)
	}
	e.sessions.Clear(authoringKey(userID))
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "authoring.saved",
		slog.Int64("exercise_id", id),
		slog.Int64("editor_id", userID))
	return []Render{edit(textSaved)}, nil
}

func (e *Engine) renderStepPrompt(ctx context.Context, st authoringState) (Render, error) {
	switch st.Step {
	case stepCategory:
		return e.renderCategoryChoice(ctx)
	case stepLevels:
		return e.renderLevelChoice(ctx, st.Draft.LevelIDs)
	default:
		return e.renderPreview(ctx, st.Draft)
	}
}

func (e *Engine) casAuthoring(userID int64, st authoringState, version uint64) error {
	if _, err := e.sessions.CompareAndSwap(authoringKey(userID), st, version); err != nil {
		return ErrStaleSession
	}
	return nil
}

func (e *Engine) renderCategoryChoice(ctx context.Context) (Render, error) {
	categories, err := e.repo.Categories(ctx)
	if err != nil {
		return Render{}, repoErr("categories", err)
	}
	buttons := lo.Map(categories, func(c storage.Category, _ int) Button {
		return Button{Label: c.Name, Unique: CbAuthoringCategory, Data: fmt.Sprint(c.ID)}
	})
	return send(textAskCategory, lo.Chunk(buttons, 2)...), nil
}

func (e *Engine) renderLevelChoice(ctx context.Context, selected []int64) (Render, error) {
	levels, err := e.repo.Levels(ctx)
	if err != nil {
		return Render{}, repoErr("levels", err)
	}
	buttons := lo.Map(levels, func(l storage.Level, _ int) Button {
		label := l.Name
		if lo.Contains(selected, l.ID) {
			label = "✅ " + label
		}
		return Button{Label: label, Unique: CbAuthoringLevel, Data: fmt.Sprint(l.ID)}
	})
	rows := lo.Chunk(buttons, 2)
	rows = append(rows, []Button{{Label: "Fertig", Unique: CbAuthoringDone}})
	return send(textAskLevels, rows...), nil
}

func (e *Engine) renderPreview(ctx context.Context, draft storage.ExerciseDraft) (Render, error) {
	categories, err := e.repo.Categories(ctx)
	if err != nil {
		return Render{}, repoErr("categories", err)
	}
	categoryName := ""
	if c, ok := lo.Find(categories, func(c storage.Category) bool { return c.ID == draft.CategoryID }); ok {
		categoryName = c.Name
	}

	levels, err := e.repo.Levels(ctx)
	if err != nil {
		return Render{}, repoErr("levels", err)
	}
	levelNames := lo.FilterMap(levels, func(l storage.Level, _ int) (string, bool) {
		return l.Name, lo.Contains(draft.LevelIDs, l.ID)
	})

	return send(formatPreview(draft, categoryName, levelNames),
		[]Button{
			{Label: "Speichern ✅", Unique: CbAuthoringSave},
			{Label: "Abbrechen ❌", Unique: CbAuthoringCancel},
		},
	), nil
}

// adjacent relies on level ids being consecutive in proficiency order.
func adjacent(a, b int64) bool {
	diff := a - b
	return diff == 1 || diff == -1
}

func splitList(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseID(payload string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
}
