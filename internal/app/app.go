package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"worktrack/internal/clock"
	"worktrack/internal/database"
	"worktrack/internal/events"
	trackerrors "worktrack/internal/infrastructure/errors"
	"worktrack/internal/infrastructure/logging"
	"worktrack/internal/infrastructure/metrics"
	"worktrack/internal/repository"
	"worktrack/internal/scheduler"
	"worktrack/internal/services"
	"worktrack/internal/storage"
)

const (
	// shutdownTimeout bounds the final flush and database close
	shutdownTimeout = 30 * time.Second

	// cleanupTimeout bounds one run of the daily retention job
	cleanupTimeout = time.Minute
)

// App wires storage, the services and the background jobs together
type App struct {
	Store    *storage.Store
	Bus      *events.Bus
	Registry *services.TaskRegistry
	Engine   *services.TimerEngine
	Reports  *services.ReportAggregator

	config    *Config
	clock     clock.Clock
	logger    logging.Logger
	logCloser func() error
	dbService database.Service
	metrics   *prometheus.Registry
	cleanup   *scheduler.Daily
}

// Option customizes New
type Option func(*App)

// WithClock replaces the wall clock, for tests
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithLogger replaces the logger built from Config.Log
func WithLogger(l logging.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New connects the database and builds every component. Nothing runs
// until Start.
func New(ctx context.Context, cfg *Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{config: cfg, clock: clock.Real()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		zl, err := logging.NewLogger(logging.Options{
			Level:      cfg.Log.Level,
			Format:     cfg.Log.Format,
			FilePath:   cfg.Log.File,
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		})
		if err != nil {
			return nil, err
		}
		a.logger = zl
		a.logCloser = zl.Close
	}
	trackerrors.SetRetryLogger(trackerrors.NewLoggerBridge(a.logger))

	dbConfig, err := cfg.DatabaseConfig()
	if err != nil {
		return nil, err
	}
	if !dbConfig.IsInMemory() {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, trackerrors.NewWithContext("app.New", err, trackerrors.ClassifyError(err),
				map[string]string{"data_dir": cfg.DataDir})
		}
	}

	dbService := database.NewSQLiteService(a.logger)
	if err := dbService.Connect(ctx, dbConfig); err != nil {
		return nil, err
	}
	if !dbConfig.AutoMigrate {
		if err := dbService.Migrate(ctx); err != nil {
			dbService.Close()
			return nil, err
		}
	}
	a.dbService = dbService

	a.metrics = prometheus.NewRegistry()
	recorder := metrics.New(a.metrics)
	a.Bus = events.NewBus(a.logger)

	blobs := repository.NewSQLiteStore(dbService, a.logger)
	a.Store = storage.New(blobs, storage.Options{
		MaxBytes:  dbConfig.MaxBlobBytes,
		Clock:     a.clock,
		Publisher: a.Bus,
		Logger:    a.logger,
		Metrics:   recorder,
	})

	deps := services.Deps{Clock: a.clock, Publisher: a.Bus, Logger: a.logger, Metrics: recorder}
	a.Registry = services.NewTaskRegistry(a.Store, deps)
	a.Engine = services.NewTimerEngine(a.Store, deps)
	a.Reports = services.NewReportAggregator(a.Store, deps)

	if cfg.Cleanup.Enabled {
		a.cleanup = scheduler.NewDaily(a.clock, cfg.Cleanup.Hour, a.runCleanup, a.logger)
	}
	return a, nil
}

// Start loads the snapshot, resumes running timers and starts auto-save and
// the daily cleanup.
func (a *App) Start(ctx context.Context) error {
	snap, err := a.Store.Load(ctx)
	if err != nil {
		return err
	}
	if err := a.Engine.Init(ctx); err != nil {
		return err
	}
	if err := a.Store.ScheduleAutoSave(ctx, snap.Settings.AutoSaveEvery()); err != nil {
		return err
	}
	if a.cleanup != nil {
		a.cleanup.Start()
	}

	a.logger.Info("Application started", "environment", a.config.Environment, "tasks", len(snap.Tasks))
	return nil
}

func (a *App) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if _, err := a.Store.RunRetention(ctx); err != nil {
		logging.LogError(a.logger, err, "app.runCleanup", nil)
	}
}

// Shutdown stops the background jobs, flushes pending changes and closes
// the database. Running timers stay open and resume on the next Start.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if a.cleanup != nil {
		a.cleanup.Stop()
	}
	a.Engine.Close()

	var firstErr error
	if err := a.Store.Close(ctx); err != nil {
		logging.LogError(a.logger, err, "app.Shutdown", map[string]interface{}{"operation": "final_persist"})
		firstErr = err
	}
	if err := a.dbService.Close(); err != nil {
		logging.LogError(a.logger, err, "app.Shutdown", map[string]interface{}{"operation": "close_connection"})
		if firstErr == nil {
			firstErr = err
		}
	}
	a.logger.Info("Application shutdown completed")
	if a.logCloser != nil {
		_ = a.logCloser()
	}
	return firstErr
}

// Config returns the configuration the app was built with
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger
func (a *App) Logger() logging.Logger { return a.logger }

// Clock returns the clock shared by every component
func (a *App) Clock() clock.Clock { return a.clock }

// Metrics returns the registry holding the application collectors
func (a *App) Metrics() prometheus.Gatherer { return a.metrics }
