package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
)

// PageSize is the number of exercises per browsing page.
const PageSize = 10

// Callback uniques emitted by the browsing keyboards.
const (
	CbBrowsingPage = "list_page"
	CbBrowsingView = "list_view"
	CbBrowsingBack = "list_back"
)

const (
	stepBrowsing = "browsing"
	stepViewing  = "viewing"
)

// browsingState is the session blob for the browsing dialogue.
type browsingState struct {
	Step       string
	Page       int
	ExerciseID int64
}

func browsingKey(userID int64) session.Key {
	return session.Key{UserID: userID, Flow: session.FlowBrowsing}
}

// StartBrowsing opens page 1 of the exercise list for an editor.
func (e *Engine) StartBrowsing(ctx context.Context, userID int64) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	e.sessions.Put(browsingKey(userID), browsingState{Step: stepBrowsing, Page: 1})
	render, err := e.renderPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	return []Render{render}, nil
}

// BrowsingSelect advances the browsing dialogue on a button action.
func (e *Engine) BrowsingSelect(ctx context.Context, userID int64, action, payload string) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	rec, ok := e.sessions.Get(browsingKey(userID))
	if !ok {
		return nil, ErrStaleSession
	}
	st, ok := rec.Value.(browsingState)
	if !ok {
		return nil, ErrStaleSession
	}

	switch action {
	case CbBrowsingPage:
		page, err := strconv.Atoi(payload)
		if err != nil || page < 1 {
			return nil, validationErr("malformed page token")
		}
		st.Step = stepBrowsing
		st.Page = page
		if err := e.casBrowsing(userID, st, rec.Version); err != nil {
			return nil, err
		}
		render, err := e.renderPage(ctx, page)
		if err != nil {
			return nil, err
		}
		render.Mode = ModeEdit
		return []Render{render}, nil

	case CbBrowsingView:
		id, err := parseID(payload)
		if err != nil {
			return nil, validationErr("malformed exercise token")
		}
		detail, err := e.repo.ExerciseDetail(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			e.sessions.Clear(browsingKey(userID))
			return []Render{edit(textStaleAction)}, notFoundErr("exercise vanished", err)
		}
		if err != nil {
			return nil, repoErr("exercise detail", err)
		}
		st.Step = stepViewing
		st.ExerciseID = id
		if err := e.casBrowsing(userID, st, rec.Version); err != nil {
			return nil, err
		}
		return []Render{edit(formatExerciseDetail(detail),
			[]Button{{Label: "⬅️ Zur Liste", Unique: CbBrowsingBack}},
		)}, nil

	case CbBrowsingBack:
		// Back always returns to the first page.
		st.Step = stepBrowsing
		st.Page = 1
		st.ExerciseID = 0
		if err := e.casBrowsing(userID, st, rec.Version); err != nil {
			return nil, err
		}
		render, err := e.renderPage(ctx, 1)
		if err != nil {
			return nil, err
		}
		render.Mode = ModeEdit
		return []Render{render}, nil

	default:
		return nil, validationErr(fmt.Sprintf("unknown browsing action %s", action))
	}
}

func (e *Engine) casBrowsing(userID int64, st browsingState, version uint64) error {
	if _, err := e.sessions.CompareAndSwap(browsingKey(userID), st, version); err != nil {
		return ErrStaleSession
	}
	return nil
}

func (e *Engine) renderPage(ctx context.Context, page int) (Render, error) {
	items, total, err := e.repo.ExercisesPage(ctx, (page-1)*PageSize, PageSize)
	if err != nil {
		return Render{}, repoErr("exercises page", err)
	}

	rows := lo.Map(items, func(ex storage.Exercise, _ int) []Button {
		return []Button{{
			Label:  truncate(ex.Sentence, 50),
			Unique: CbBrowsingView,
			Data:   fmt.Sprint(ex.ID),
		}}
	})

	var nav []Button
	if page > 1 {
		nav = append(nav, Button{Label: "⬅️", Unique: CbBrowsingPage, Data: fmt.Sprint(page - 1)})
	}
	if page*PageSize < total {
		nav = append(nav, Button{Label: "➡️", Unique: CbBrowsingPage, Data: fmt.Sprint(page + 1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	text := fmt.Sprintf("Übungen (Seite %d, gesamt %d):", page, total)
	if total == 0 {
		text = "Noch keine Übungen vorhanden."
	}
	return send(text, rows...), nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
