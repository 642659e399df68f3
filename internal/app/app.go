// Package app wires the menu engine, its stores and the demo tree into a
// runnable Telegram bot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/menubot/core/bootstrap"
	corecmd "github.com/m3rciful/menubot/core/cmd"
	coreconfig "github.com/m3rciful/menubot/core/config"
	"github.com/m3rciful/menubot/core/locale"
	"github.com/m3rciful/menubot/core/logger"
	tg "github.com/m3rciful/menubot/core/telegram"
	"github.com/m3rciful/menubot/core/telegram/ids"
	"github.com/m3rciful/menubot/core/telegram/router"
	"github.com/m3rciful/menubot/core/telegram/screen"
	"github.com/m3rciful/menubot/core/telegram/session"
	"github.com/m3rciful/menubot/internal/menu"
)

// App holds the infrastructure built by Bootstrap.
type App struct {
	cfg *Config
	db  *sqlx.DB
	tr  *locale.Translator
}

// Load adapts LoadConfig to the runner.
func Load(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Bootstrap initialises logging and storage for cfg.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return a, nil
}

// New builds the app over an optional database.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	tr, err := locale.New(cfg.Locale.Default)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, db: db, tr: tr}, nil
}

func (a *App) idStore() (ids.Store, error) {
	if a.cfg.Screens.IDsStore == coreconfig.IDsStoreDB {
		if a.db == nil {
			return nil, fmt.Errorf("app: screens.ids_store is db but no database is connected")
		}
		return ids.NewSQLStore(a.db), nil
	}
	return ids.NewFileStore(a.cfg.Screens.IDsPath), nil
}

func (a *App) sessionStore() session.Store {
	if a.db != nil {
		return session.NewSQLStore(a.db)
	}
	return session.NewMemoryStore()
}

// Registry builds the registry holding the demo tree and the fallback screen.
func (a *App) Registry(ctx context.Context) (*tg.Registry, error) {
	store, err := a.idStore()
	if err != nil {
		return nil, err
	}
	reg := tg.NewRegistry(ids.NewAllocator(store))
	tree := menu.New(menu.Options{Languages: a.tr.Languages(), ScreenCount: reg.Len})
	for _, s := range tree.All() {
		if err := reg.Register(ctx, s); err != nil {
			return nil, fmt.Errorf("app: register %s: %w", s.Name(), err)
		}
	}
	if err := reg.SetFallback(ctx, screen.NewErrorScreen(a.cfg.Screens.SupportURL)); err != nil {
		return nil, err
	}
	if _, ok := reg.ByName(a.cfg.Screens.Root); !ok {
		return nil, fmt.Errorf("app: root screen %q is not registered", a.cfg.Screens.Root)
	}
	reg.SetRoot(a.cfg.Screens.Root)
	return reg, nil
}

// Routes builds the engine for rt and the routes feeding it.
func (a *App) Routes(rt tg.Runtime) ([]tg.Route, error) {
	engine, err := tg.NewEngine(tg.EngineOptions{
		Registry:     rt.Registry,
		Sessions:     a.sessionStore(),
		Transport:    tg.NewTeleTransport(rt.Bot, rt.Dispatcher),
		OperatorID:   a.cfg.Telegram.AdminID,
		Translator:   a.tr,
		MaxRedirects: a.cfg.Screens.MaxRedirects,
		SupportURL:   a.cfg.Screens.SupportURL,
	})
	if err != nil {
		return nil, err
	}

	routes := []tg.Route{router.CallbackRoute(engine)}
	routes = append(routes, router.CommandRoutes(engine)...)
	routes = append(routes, router.TextRoutes(engine, router.TextOptions{})...)
	routes = append(routes, router.InlineRoute(menu.CommandArticles(rt.Registry), router.InlineOptions{CacheTime: 60}))
	return routes, nil
}

// TelegramRunOptions satisfies the runner's TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg, err := a.Registry(context.Background())
	if err != nil {
		return tg.RunOptions{}, err
	}
	return tg.RunOptions{
		Config:   &a.cfg.Config,
		Registry: reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, tg.MiddlewareOptions{
			MaintenanceNotice: func(lang string) string {
				return a.tr.Translate(lang, screen.MsgMaintenance)
			},
		}),
		Setup:  a.Routes,
		OnStop: a.close,
	}, nil
}

func (a *App) close(ctx context.Context, _ tg.Runtime) error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelWarn, "db close failed",
			slog.String("event", "db.close"),
			slog.String("err", err.Error()),
		)
		return err
	}
	return nil
}
