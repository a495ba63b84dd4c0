package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/romavesna/bausteinbot/core/config"
	"github.com/romavesna/bausteinbot/core/logger"
	coretelegram "github.com/romavesna/bausteinbot/core/telegram"

	"github.com/romavesna/bausteinbot/bot"

	"log/slog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("bausteinbot: %v", err)
	}
}

func run() error {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return err
	}

	app, err := bot.Bootstrap(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	startedAt := time.Now()
	runOpts := app.TelegramRunOptions()
	runOpts.OnStart = func(ctx context.Context, _ coretelegram.Runtime) error {
		logger.App.Info("app ready",
			slog.String("event", "ready"),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context, _ coretelegram.Runtime) error {
		logger.App.Info("shutting down...",
			slog.String("event", "shutdown"),
		)
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return coretelegram.RunTelegram(ctx, runOpts)
}
