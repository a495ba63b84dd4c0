package bot

import (
	"errors"

	tele "gopkg.in/telebot.v4"

	"github.com/romavesna/bausteinbot/core/telegram/helpers"
	"github.com/romavesna/bausteinbot/core/telegram/keyboard"
	"github.com/romavesna/bausteinbot/flows"
)

// respond executes the engine's renders against the current chat.
func respond(c tele.Context, renders []flows.Render) error {
	for _, r := range renders {
		markup := markupFor(r)
		var err error
		switch r.Mode {
		case flows.ModeEdit:
			err = helpers.EditOrSend(c, r.Text, markup)
		case flows.ModeReplace:
			err = helpers.DeleteAndSend(c, r.Text, markup)
		default:
			err = helpers.SendKeyboard(c, r.Text, markup)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func markupFor(r flows.Render) *tele.ReplyMarkup {
	if len(r.Keyboard) == 0 {
		return nil
	}
	rows := make([][]keyboard.InlineBtn, len(r.Keyboard))
	for i, row := range r.Keyboard {
		btns := make([]keyboard.InlineBtn, len(row))
		for j, b := range row {
			btns[j] = keyboard.InlineBtn{Text: b.Label, Unique: b.Unique, Data: b.Data}
		}
		rows[i] = btns
	}
	return keyboard.InlineButtonsRows(rows...)
}

// respondFlow renders the engine's output and translates flow errors into
// transport behavior. The error is returned so the wire summary records its
// code.
func respondFlow(c tele.Context, renders []flows.Render, err error) error {
	if rerr := respond(c, renders); rerr != nil {
		return rerr
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, flows.ErrUnauthorized) {
		// Silent rejection: do not reveal the flow exists.
		_ = c.Delete()
		return err
	}

	if len(renders) == 0 {
		var flowErr *flows.Error
		if errors.As(err, &flowErr) {
			switch flowErr.Code() {
			case flows.CodeStaleSession:
				_ = helpers.SendText(c, flows.StaleActionText())
			case flows.CodeRepository, flows.CodeNotFound, flows.CodeInsufficientPool:
				_ = helpers.SendText(c, flows.TransientFailureText())
			}
		}
	}
	return err
}
