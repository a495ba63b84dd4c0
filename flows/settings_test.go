package flows

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSettingsApplyAndRender(t *testing.T) {
	engine, repo, _ := fixture()
	addUser(repo, 50)
	ctx := context.Background()

	renders, err := engine.SettingsSelect(ctx, 50, CbSettingsAnswers, "4")
	if err != nil {
		t.Fatalf("set answers: %v", err)
	}
	if len(renders) != 1 || renders[0].Mode != ModeEdit {
		t.Fatalf("expected one edit render, got %+v", renders)
	}
	if !strings.HasPrefix(renders[0].Text, textSettingsSaved) {
		t.Fatalf("expected saved prefix, got %q", renders[0].Text)
	}
	if !strings.Contains(renders[0].Text, "Antworten pro Frage: 4") {
		t.Fatalf("menu does not reflect new value: %q", renders[0].Text)
	}
	if got := repo.settings[50].AnswersCount; got == nil || *got != 4 {
		t.Fatalf("answers count not persisted: %v", got)
	}

	renders, err = engine.SettingsSelect(ctx, 50, CbSettingsLevel, "2")
	if err != nil {
		t.Fatalf("set level: %v", err)
	}
	if !strings.Contains(renders[0].Text, "Niveau: B1") {
		t.Fatalf("expected level name in menu, got %q", renders[0].Text)
	}

	renders, err = engine.SettingsSelect(ctx, 50, CbSettingsTime, "08:00")
	if err != nil {
		t.Fatalf("set time: %v", err)
	}
	if !strings.Contains(renders[0].Text, "Trainingszeit: 08:00") {
		t.Fatalf("expected reminder time in menu, got %q", renders[0].Text)
	}

	renders, err = engine.SettingsSelect(ctx, 50, CbSettingsTime, "none")
	if err != nil {
		t.Fatalf("disable time: %v", err)
	}
	if !strings.Contains(renders[0].Text, "Trainingszeit: aus") {
		t.Fatalf("expected disabled reminder, got %q", renders[0].Text)
	}
	if repo.settings[50].TrainingTime != nil {
		t.Fatal("reminder time not cleared")
	}
}

func TestSettingsRejectsUnknownTokens(t *testing.T) {
	engine, repo, _ := fixture()
	addUser(repo, 51)
	ctx := context.Background()

	cases := []struct {
		action  string
		payload string
	}{
		{CbSettingsAnswers, "7"},
		{CbSettingsAnswers, "viele"},
		{CbSettingsLength, "11"},
		{CbSettingsLevel, "abc"},
		{CbSettingsTime, "23:30"},
		{CbSettingsMenu, "bogus"},
	}
	for _, tc := range cases {
		_, err := engine.SettingsSelect(ctx, 51, tc.action, tc.payload)
		var flowErr *Error
		if !errors.As(err, &flowErr) || flowErr.Code() != CodeValidation {
			t.Fatalf("%s %q: expected validation error, got %v", tc.action, tc.payload, err)
		}
	}
	if _, ok := repo.settings[51]; ok {
		t.Fatal("rejected tokens must not persist settings")
	}
}

func TestSettingsSubmenusCarryBackRow(t *testing.T) {
	engine, repo, _ := fixture()
	addUser(repo, 52)
	ctx := context.Background()

	for _, submenu := range []string{"answers", "length", "level", "time"} {
		renders, err := engine.SettingsSelect(ctx, 52, CbSettingsMenu, submenu)
		if err != nil {
			t.Fatalf("submenu %s: %v", submenu, err)
		}
		rows := renders[0].Keyboard
		last := rows[len(rows)-1]
		if len(last) != 1 || last[0].Data != "back" {
			t.Fatalf("submenu %s: expected trailing back row, got %+v", submenu, last)
		}
	}

	renders, err := engine.SettingsSelect(ctx, 52, CbSettingsMenu, "back")
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if renders[0].Mode != ModeEdit || !strings.Contains(renders[0].Text, textSettingsTitle) {
		t.Fatalf("back should edit into the menu, got %+v", renders[0])
	}
}
