// Package app wires the application together: configuration, store,
// timer gateway, wake-signal bridge, coordinator, and HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chimelab/chime/internal/config"
	"github.com/chimelab/chime/internal/coordinator"
	"github.com/chimelab/chime/internal/server"
	"github.com/chimelab/chime/internal/sqlite"
	"github.com/chimelab/chime/internal/timer/memtimer"
	"github.com/chimelab/chime/internal/wakesignal"
	"github.com/chimelab/chime/pkg/logger"
)

// App represents the core application context, holding dependencies and
// configuration.
type App struct {
	Config      *config.Config
	SQLite      *sqlite.DB
	Timer       *memtimer.Timer
	Bridge      *wakesignal.Bridge
	Coordinator *coordinator.Manager
	Logger      *slog.Logger
	Version     string

	server *server.Server
	cancel context.CancelFunc
}

// Options contains configuration needed when creating a new App instance.
type Options struct {
	ConfigPath string
	Version    string
}

// New creates and configures a new App instance.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger.New(cfg.Logging.Level == "debug"),
		Version: opts.Version,
		cancel:  func() {},
	}, nil
}

// Initialize sets up application components: the database, the timer
// gateway, the wake-signal bridge, and the coordinator. The coordinator
// subscribes to the bridge and then restores every enabled alarm, so a
// signal that launched the process is delivered after the schedules are
// re-armed and state mutations land on consistent records.
func (a *App) Initialize(ctx context.Context) error {
	var err error

	a.SQLite, err = sqlite.New(sqlite.Options{
		Config: a.Config.SQLite,
		Logger: a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Bridge = wakesignal.New(a.Logger)
	a.Timer = memtimer.New(a.Logger, a.Bridge)

	a.Coordinator = coordinator.NewManager(coordinator.Options{
		Store:    a.SQLite,
		Gateway:  a.Timer,
		Logger:   a.Logger,
		Snooze:   a.Config.Alarm.SnoozeDuration,
		ScanDays: a.Config.Alarm.OccurrenceScanDays,
	})

	a.Timer.Run(runCtx)
	a.Bridge.Run(runCtx)

	if err := a.Coordinator.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore alarms: %w", err)
	}
	a.Bridge.Subscribe(a.Coordinator.HandleSignal)

	a.server = server.New(server.ServerOptions{
		Config:      a.Config,
		Coordinator: a.Coordinator,
		Bridge:      a.Bridge,
		Logger:      a.Logger,
		Version:     a.Version,
	})

	return nil
}

// Start begins the application's main execution loop (starts the HTTP
// server).
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("server not initialized")
	}
	a.Logger.Info("starting server", "version", a.Version)
	return a.server.Start()
}

// Shutdown gracefully stops all application components with timeouts.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	serverCtx, serverCancel := context.WithTimeout(ctx, 5*time.Second)
	defer serverCancel()

	if a.server != nil {
		a.Logger.Info("shutting down HTTP server")
		if err := a.server.Shutdown(serverCtx); err != nil {
			a.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	// Stop the timer loop and the bridge before closing the store so no
	// signal lands on a closed database.
	a.cancel()

	if a.SQLite != nil {
		if err := a.SQLite.Close(); err != nil {
			a.Logger.Error("error closing database", "error", err)
			return err
		}
	}

	a.Logger.Info("shutdown complete")
	return nil
}
