package flows

import (
	"context"
	"fmt"

	"log/slog"

	"github.com/romavesna/bausteinbot/core/logger"
	"github.com/romavesna/bausteinbot/session"
)

// codesState marks an active access-code dialogue; the single step only waits
// for one text message.
type codesState struct{}

func codesKey(userID int64) session.Key {
	return session.Key{UserID: userID, Flow: session.FlowAccessCodes}
}

// StartAddCodes begins the access-code dialogue for an editor.
func (e *Engine) StartAddCodes(ctx context.Context, userID int64) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	e.sessions.Put(codesKey(userID), codesState{})
	return []Render{send(textAskCodes)}, nil
}

// CodesInput parses the comma-separated code list, inserts the new ones, and
// reports how many were actually stored.
func (e *Engine) CodesInput(ctx context.Context, userID int64, text string) ([]Render, error) {
	if err := e.authorizeEditor(ctx, userID); err != nil {
		return nil, err
	}
	if _, ok := e.sessions.Get(codesKey(userID)); !ok {
		return nil, ErrStaleSession
	}

	codes := splitList(text)
	if len(codes) == 0 {
		return []Render{send(textCodesEmpty)}, validationErr("no codes in input")
	}

	inserted, err := e.repo.InsertAccessCodes(ctx, codes)
	if err != nil {
		// Session stays open so resending the same list is safe.
		return []Render{send(textTransientFailure)}, repoErr("insert access codes", err)
	}

	e.sessions.Clear(codesKey(userID))
	logger.LogEvent(ctx, logger.Flow, slog.LevelInfo, "codes.saved",
		slog.Int("inserted", inserted),
		slog.Int("submitted", len(codes)),
		slog.Int64("editor_id", userID))
	skipped := len(codes) - inserted
	text = fmt.Sprintf("%d Codes gespeichert ✅", inserted)
	if skipped > 0 {
		text += fmt.Sprintf(" (%d Duplikate übersprungen)", skipped)
	}
	return []Render{send(text)}, nil
}
