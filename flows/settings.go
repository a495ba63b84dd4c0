package flows

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samber/lo"

	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

// Callback uniques emitted by the settings keyboards. The settings dialogue
// is stateless: every action carries enough context to apply directly, so no
// session record is kept.
const (
	CbSettingsMenu    = "set_menu"
	CbSettingsAnswers = "set_answers"
	CbSettingsLength  = "set_length"
	CbSettingsLevel   = "set_level"
	CbSettingsTime    = "set_time"
)

// Submenu tokens carried in CbSettingsMenu payloads.
const (
	settingsMenuAnswers = "answers"
	settingsMenuLength  = "length"
	settingsMenuLevel   = "level"
	settingsMenuTime    = "time"
	settingsMenuBack    = "back"
)

// timeDisabled is the CbSettingsTime payload that clears the reminder time.
const timeDisabled = "none"

// AnswerCountOptions are the selectable options-per-question counts.
var AnswerCountOptions = []int{3, 4, 5}

// trainingTimes is the fixed reminder-time grid, four per row.
var trainingTimes = []string{
	"07:00", "08:00", "09:00", "10:00",
	"11:00", "12:00", "13:00", "14:00",
	"15:00", "16:00", "17:00", "18:00",
	"19:00", "20:00", "21:00", "22:00",
}

// OpenSettings shows the settings menu.
func (e *Engine) OpenSettings(ctx context.Context, userID int64) ([]Render, error) {
	render, err := e.renderSettingsMenu(ctx, userID)
	if err != nil {
		return nil, err
	}
	return []Render{render}, nil
}

// SettingsSelect applies a settings action and re-renders in place.
func (e *Engine) SettingsSelect(ctx context.Context, userID int64, action, payload string) ([]Render, error) {
	switch action {
	case CbSettingsMenu:
		return e.settingsSubmenu(ctx, userID, payload)
	case CbSettingsAnswers:
		n, err := strconv.Atoi(payload)
		if err != nil || !lo.Contains(AnswerCountOptions, n) {
			return nil, validationErr("malformed answers token")
		}
		return e.applySetting(ctx, userID, func(s *storage.UserSettings) { s.AnswersCount = &n })
	case CbSettingsLength:
		n, err := strconv.Atoi(payload)
		if err != nil || !lo.Contains(training.CountOptions, n) {
			return nil, validationErr("malformed length token")
		}
		return e.applySetting(ctx, userID, func(s *storage.UserSettings) { s.ExercisesCount = &n })
	case CbSettingsLevel:
		id, err := parseID(payload)
		if err != nil {
			return nil, validationErr("malformed level token")
		}
		return e.applySetting(ctx, userID, func(s *storage.UserSettings) { s.LevelID = &id })
	case CbSettingsTime:
		if payload == timeDisabled {
			return e.applySetting(ctx, userID, func(s *storage.UserSettings) { s.TrainingTime = nil })
		}
		if !lo.Contains(trainingTimes, payload) {
			return nil, validationErr("malformed time token")
		}
		return e.applySetting(ctx, userID, func(s *storage.UserSettings) { s.TrainingTime = &payload })
	default:
		return nil, validationErr(fmt.Sprintf("unknown settings action %s", action))
	}
}

func (e *Engine) settingsSubmenu(ctx context.Context, userID int64, submenu string) ([]Render, error) {
	backRow := []Button{{Label: "⬅️ Zurück", Unique: CbSettingsMenu, Data: settingsMenuBack}}

	switch submenu {
	case settingsMenuAnswers:
		buttons := lo.Map(AnswerCountOptions, func(n int, _ int) Button {
			return Button{Label: fmt.Sprint(n), Unique: CbSettingsAnswers, Data: fmt.Sprint(n)}
		})
		return []Render{edit(textChooseAnswers, buttons, backRow)}, nil

	case settingsMenuLength:
		buttons := lo.Map(training.CountOptions, func(n int, _ int) Button {
			return Button{Label: fmt.Sprint(n), Unique: CbSettingsLength, Data: fmt.Sprint(n)}
		})
		return []Render{edit(textChooseLength, buttons, backRow)}, nil

	case settingsMenuLevel:
		levels, err := e.repo.Levels(ctx)
		if err != nil {
			return nil, repoErr("levels", err)
		}
		buttons := lo.Map(levels, func(l storage.Level, _ int) Button {
			return Button{Label: l.Name, Unique: CbSettingsLevel, Data: fmt.Sprint(l.ID)}
		})
		rows := append(lo.Chunk(buttons, 2), backRow)
		return []Render{edit(textChooseSetLevel, rows...)}, nil

	case settingsMenuTime:
		buttons := lo.Map(trainingTimes, func(t string, _ int) Button {
			return Button{Label: t, Unique: CbSettingsTime, Data: t}
		})
		rows := lo.Chunk(buttons, 4)
		rows = append(rows, []Button{{Label: "Erinnerung aus", Unique: CbSettingsTime, Data: timeDisabled}}, backRow)
		return []Render{edit(textChooseTime, rows...)}, nil

	case settingsMenuBack:
		render, err := e.renderSettingsMenu(ctx, userID)
		if err != nil {
			return nil, err
		}
		render.Mode = ModeEdit
		return []Render{render}, nil

	default:
		return nil, validationErr(fmt.Sprintf("unknown settings submenu %s", submenu))
	}
}

func (e *Engine) applySetting(ctx context.Context, userID int64, mutate func(*storage.UserSettings)) ([]Render, error) {
	settings, err := e.repo.SettingsByUser(ctx, userID)
	if err != nil {
		return nil, repoErr("settings", err)
	}
	settings.UserID = userID
	mutate(&settings)
	if err := e.repo.SaveSettings(ctx, settings); err != nil {
		return nil, repoErr("save settings", err)
	}
	render, err := e.renderSettingsMenu(ctx, userID)
	if err != nil {
		return nil, err
	}
	render.Text = textSettingsSaved + "\n\n" + render.Text
	render.Mode = ModeEdit
	return []Render{render}, nil
}

func (e *Engine) renderSettingsMenu(ctx context.Context, userID int64) (Render, error) {
	settings, err := e.repo.SettingsByUser(ctx, userID)
	if err != nil {
		return Render{}, repoErr("settings", err)
	}

	answers := training.DefaultAnswersCount
	if settings.AnswersCount != nil {
		answers = *settings.AnswersCount
	}
	length := "–"
	if settings.ExercisesCount != nil {
		length = fmt.Sprint(*settings.ExercisesCount)
	}
	level := "–"
	if settings.LevelID != nil {
		levels, err := e.repo.Levels(ctx)
		if err != nil {
			return Render{}, repoErr("levels", err)
		}
		if l, ok := lo.Find(levels, func(l storage.Level) bool { return l.ID == *settings.LevelID }); ok {
			level = l.Name
		}
	}
	reminder := "aus"
	if settings.TrainingTime != nil {
		reminder = *settings.TrainingTime
	}

	text := fmt.Sprintf("%s\n\nAntworten pro Frage: %d\nAufgaben pro Training: %s\nNiveau: %s\nTrainingszeit: %s",
		textSettingsTitle, answers, length, level, reminder)

	rows := [][]Button{
		{{Label: "Antwortmöglichkeiten", Unique: CbSettingsMenu, Data: settingsMenuAnswers}},
		{{Label: "Trainingslänge", Unique: CbSettingsMenu, Data: settingsMenuLength}},
		{{Label: "Niveau", Unique: CbSettingsMenu, Data: settingsMenuLevel}},
		{{Label: "Trainingszeit", Unique: CbSettingsMenu, Data: settingsMenuTime}},
	}
	return send(text, rows...), nil
}
