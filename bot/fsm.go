package bot

import (
	tele "gopkg.in/telebot.v4"

	"github.com/romavesna/bausteinbot/core/telegram/helpers"
	"github.com/romavesna/bausteinbot/flows"
)

// fsm adapts the engine's text dialogues to the message router's FSM hook.
type fsm struct {
	engine *flows.Engine
}

func (f *fsm) InProgress(userID int64) bool {
	return f.engine.ExpectsText(userID)
}

func (f *fsm) ManagerHandler(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	renders, err := f.engine.HandleText(ctx, c.Sender().ID, c.Text())
	return respondFlow(c, renders, err)
}
