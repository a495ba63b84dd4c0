// Package flows implements the conversation state machines: exercise
// authoring, exercise browsing, training sessions, settings, and access-code
// creation. Each inbound action is authorized once, validated against the
// current session state, and produces renders for the transport to display.
package flows

import (
	"context"

	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

// Repository is the durable-store contract consumed by the engine.
type Repository interface {
	EnsureUser(ctx context.Context, id int64, username string) (storage.User, error)
	UserByID(ctx context.Context, id int64) (storage.User, error)
	SettingsByUser(ctx context.Context, userID int64) (storage.UserSettings, error)
	SaveSettings(ctx context.Context, s storage.UserSettings) error
	Levels(ctx context.Context) ([]storage.Level, error)
	Categories(ctx context.Context) ([]storage.Category, error)
	CountExercisesForLevel(ctx context.Context, levelID int64) (int, error)
	ExerciseIDsForLevel(ctx context.Context, levelID int64) ([]int64, error)
	ExerciseDetail(ctx context.Context, id int64) (storage.ExerciseDetail, error)
	ExercisesPage(ctx context.Context, offset, limit int) ([]storage.Exercise, int, error)
	CreateExercise(ctx context.Context, draft storage.ExerciseDraft) (int64, error)
	TouchCategoryStat(ctx context.Context, userID, categoryID int64) error
	RecordCorrectAnswer(ctx context.Context, userID, categoryID int64) error
	CategoryStats(ctx context.Context, userID int64) ([]storage.CategoryStat, error)
	InsertAccessCodes(ctx context.Context, codes []string) (int, error)
}

// Mode tells the transport how to place a render.
type Mode int

const (
	// ModeSend emits a new message.
	ModeSend Mode = iota
	// ModeEdit updates the message the action came from.
	ModeEdit
	// ModeReplace deletes the source message and sends a new one.
	ModeReplace
)

// Button is one inline option: a label plus an opaque (unique, data) token.
type Button struct {
	Label  string
	Unique string
	Data   string
}

// Render is one outbound step emitted by a transition.
type Render struct {
	Text     string
	Keyboard [][]Button
	Mode     Mode
}

func send(text string, keyboard ...[]Button) Render {
	return Render{Text: text, Keyboard: keyboard, Mode: ModeSend}
}

func edit(text string, keyboard ...[]Button) Render {
	return Render{Text: text, Keyboard: keyboard, Mode: ModeEdit}
}

func replace(text string, keyboard ...[]Button) Render {
	return Render{Text: text, Keyboard: keyboard, Mode: ModeReplace}
}

// Engine advances the conversation state machines.
type Engine struct {
	repo     Repository
	sessions session.Store
	selector *training.Selector
	roles    *roleCache
}

// NewEngine wires the engine's collaborators.
func NewEngine(repo Repository, sessions session.Store, selector *training.Selector) *Engine {
	return &Engine{
		repo:     repo,
		sessions: sessions,
		selector: selector,
		roles:    newRoleCache(),
	}
}

// Greet creates the user on first contact, resets any dangling dialogue
// state, and returns the stored user with a role-specific greeting.
func (e *Engine) Greet(ctx context.Context, userID int64, username string) (storage.User, []Render, error) {
	user, err := e.repo.EnsureUser(ctx, userID, username)
	if err != nil {
		return storage.User{}, nil, repoErr("greet", err)
	}
	e.roles.put(userID, user.Role)
	for _, flow := range session.Flows {
		e.sessions.Clear(session.Key{UserID: userID, Flow: flow})
	}

	text := textGreeting
	if user.Role.Editor() {
		text = textGreetingEditor
	}
	return user, []Render{send(text)}, nil
}

// ExpectsText reports whether one of the user's dialogues currently consumes
// free text. The transport uses this to route messages into the engine before
// trying command lookup.
func (e *Engine) ExpectsText(userID int64) bool {
	if _, ok := e.sessions.Get(authoringKey(userID)); ok {
		return true
	}
	_, ok := e.sessions.Get(codesKey(userID))
	return ok
}

// HandleText feeds free text to whichever dialogue is waiting for it.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) ([]Render, error) {
	if _, ok := e.sessions.Get(codesKey(userID)); ok {
		return e.CodesInput(ctx, userID, text)
	}
	if _, ok := e.sessions.Get(authoringKey(userID)); ok {
		return e.AuthoringInput(ctx, userID, text)
	}
	return nil, ErrStaleSession
}

// Statistics renders per-category accuracy lines plus an overall rollup.
func (e *Engine) Statistics(ctx context.Context, userID int64) ([]Render, error) {
	stats, err := e.repo.CategoryStats(ctx, userID)
	if err != nil {
		return nil, repoErr("statistics", err)
	}
	if len(stats) == 0 {
		return []Render{send(textNoStatistics)}, nil
	}
	return []Render{send(formatStatistics(stats))}, nil
}
