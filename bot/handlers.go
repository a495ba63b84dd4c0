package bot

import (
	"context"

	tele "gopkg.in/telebot.v4"

	tg "github.com/romavesna/bausteinbot/core/telegram"
	tgcallbacks "github.com/romavesna/bausteinbot/core/telegram/callbacks"
	"github.com/romavesna/bausteinbot/core/telegram/commands"
	"github.com/romavesna/bausteinbot/core/telegram/helpers"
	"github.com/romavesna/bausteinbot/flows"
)

// buildRegistry declares all commands and callbacks over the engine.
func buildRegistry(engine *flows.Engine) *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     startHandler(engine, reg),
		Description: "Bot starten",
	})
	reg.RegisterCommand("/start_training", commands.Command{
		Handler: func(c tele.Context) error {
			renders, err := engine.StartTraining(helpers.BuildContext(c), c.Sender().ID)
			return respondFlow(c, renders, err)
		},
		Description: "Training starten",
	})
	reg.RegisterCommand("/my_statistics", commands.Command{
		Handler: func(c tele.Context) error {
			renders, err := engine.Statistics(helpers.BuildContext(c), c.Sender().ID)
			return respondFlow(c, renders, err)
		},
		Description: "Meine Statistik",
	})
	reg.RegisterCommand("/bot_settings", commands.Command{
		Handler: func(c tele.Context) error {
			renders, err := engine.OpenSettings(helpers.BuildContext(c), c.Sender().ID)
			return respondFlow(c, renders, err)
		},
		Description: "Einstellungen",
	})
	reg.RegisterCommand("/feedback", commands.Command{
		Handler: func(c tele.Context) error {
			return helpers.SendText(c, flows.FeedbackText())
		},
		Description: "Feedback an die Entwickler",
	})

	reg.RegisterCommand("/add_example", commands.Command{
		Handler: func(c tele.Context) error {
			renders, err := engine.StartAuthoring(helpers.BuildContext(c), c.Sender().ID)
			return respondFlow(c, renders, err)
		},
		Description: "Neue Übung anlegen",
		EditorOnly:  true,
	})
	reg.RegisterCommand("/list_examples", commands.Command{
		Handler: func(c tele.Context) error {
			renders, err := engine.StartBrowsing(helpers.BuildContext(c), c.Sender().ID)
			return respondFlow(c, renders, err)
		},
		Description: "Übungen durchsehen",
		EditorOnly:  true,
	})
	reg.RegisterCommand("/add_access_codes", commands.Command{
		Handler: func(c tele.Context) error {
			renders, err := engine.StartAddCodes(helpers.BuildContext(c), c.Sender().ID)
			return respondFlow(c, renders, err)
		},
		Description: "Zugangscodes anlegen",
		EditorOnly:  true,
	})

	registerSelect(reg, flows.CbAuthoringCategory, engine.AuthoringSelect)
	registerSelect(reg, flows.CbAuthoringLevel, engine.AuthoringSelect)
	registerSelect(reg, flows.CbAuthoringDone, engine.AuthoringSelect)
	registerSelect(reg, flows.CbAuthoringSave, engine.AuthoringSelect)
	registerSelect(reg, flows.CbAuthoringCancel, engine.AuthoringSelect)

	registerSelect(reg, flows.CbBrowsingPage, engine.BrowsingSelect)
	registerSelect(reg, flows.CbBrowsingView, engine.BrowsingSelect)
	registerSelect(reg, flows.CbBrowsingBack, engine.BrowsingSelect)

	registerSelect(reg, flows.CbTrainingLevel, engine.TrainingSelect)
	registerSelect(reg, flows.CbTrainingCount, engine.TrainingSelect)
	registerSelect(reg, flows.CbTrainingAnswer, engine.TrainingSelect)

	registerSelect(reg, flows.CbSettingsMenu, engine.SettingsSelect)
	registerSelect(reg, flows.CbSettingsAnswers, engine.SettingsSelect)
	registerSelect(reg, flows.CbSettingsLength, engine.SettingsSelect)
	registerSelect(reg, flows.CbSettingsLevel, engine.SettingsSelect)
	registerSelect(reg, flows.CbSettingsTime, engine.SettingsSelect)

	// Text and media outside an active dialogue are dropped silently.
	reg.SetTextFallback(func(c tele.Context) error {
		_ = c.Delete()
		return nil
	})

	return reg
}

type selectFunc func(ctx context.Context, userID int64, action, payload string) ([]flows.Render, error)

func registerSelect(reg *tg.Registry, unique string, fn selectFunc) {
	_ = reg.RegisterCallback(unique, func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		renders, err := fn(ctx, c.Sender().ID, unique, tgcallbacks.CallbackPayload(c))
		return respondFlow(c, renders, err)
	})
}

// startHandler greets the user and installs the command menu for their role.
func startHandler(engine *flows.Engine, reg *tg.Registry) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := helpers.BuildContext(c)
		user, renders, err := engine.Greet(ctx, c.Sender().ID, c.Sender().Username)
		if err != nil {
			return respondFlow(c, renders, err)
		}

		scope := tele.CommandScope{Type: tele.CommandScopeChat, ChatID: c.Chat().ID}
		list := reg.ListCommands(true)
		if user.Role.Editor() {
			list = reg.EditorCommands()
		}
		_ = c.Bot().DeleteCommands(scope)
		_ = c.Bot().SetCommands(list, scope)

		return respondFlow(c, renders, nil)
	}
}
