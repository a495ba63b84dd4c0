// Package bot wires configuration, storage, and the conversation engine into
// a runnable Telegram bot.
package bot

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/romavesna/bausteinbot/core/config"
	coredatabase "github.com/romavesna/bausteinbot/core/database"
	"github.com/romavesna/bausteinbot/core/logger"
	tg "github.com/romavesna/bausteinbot/core/telegram"
	"github.com/romavesna/bausteinbot/core/telegram/router"
	"github.com/romavesna/bausteinbot/flows"
	"github.com/romavesna/bausteinbot/session"
	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

// App holds the bootstrapped components.
type App struct {
	Config   *coreconfig.Config
	DB       *sqlx.DB
	Engine   *flows.Engine
	Registry *tg.Registry
}

// Bootstrap initializes logging, the database (with migrations), and the
// conversation engine.
func Bootstrap(cfg *coreconfig.Config) (*App, error) {
	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := coredatabase.RunMigrations(coredatabase.Config(cfg.Database)); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := coredatabase.Connect(coredatabase.Config(cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	engine := flows.NewEngine(
		storage.NewRepository(db),
		session.NewMemoryStore(),
		training.NewSelector(rand.NewSource(time.Now().UnixNano())),
	)

	return &App{
		Config:   cfg,
		DB:       db,
		Engine:   engine,
		Registry: buildRegistry(engine),
	}, nil
}

// TelegramRunOptions assembles the transport wiring for RunTelegram.
func (a *App) TelegramRunOptions() tg.RunOptions {
	routes := router.CommandRoutes(a.Registry)
	routes = append(routes, router.CallbackRoute(a.Registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(&fsm{engine: a.Engine}, a.Registry, router.TextOptions{
		UnknownMedia: func(c tele.Context) error {
			_ = c.Delete()
			return nil
		},
	})...)

	return tg.RunOptions{
		Config:      a.Config,
		Registry:    a.Registry,
		Middlewares: tg.DefaultMiddlewares(a.Config, nil),
		Routes:      routes,
	}
}

// Close releases the app's resources.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
