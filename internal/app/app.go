// Package app wires configuration into a ready journaling core.
// It is the dependency injection point shared by the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/memcapsule/internal/capsule"
	"github.com/raphaelgruber/memcapsule/internal/config"
	"github.com/raphaelgruber/memcapsule/internal/db"
	"github.com/raphaelgruber/memcapsule/internal/embedding"
	"github.com/raphaelgruber/memcapsule/internal/entrylog"
	"github.com/raphaelgruber/memcapsule/internal/llm"
	"github.com/raphaelgruber/memcapsule/internal/localdb"
	"github.com/raphaelgruber/memcapsule/internal/metrics"
	"github.com/raphaelgruber/memcapsule/internal/service"
	"github.com/raphaelgruber/memcapsule/internal/streak"
	"github.com/raphaelgruber/memcapsule/internal/vectorindex"
)

// Backend is a storage engine holding all three capsule artifacts.
type Backend interface {
	entrylog.Store
	streak.Store
	vectorindex.Store
	ListUsers(ctx context.Context) ([]string, error)
	WipeData(ctx context.Context) error
}

var (
	_ Backend = (*localdb.DB)(nil)
	_ Backend = (*db.Client)(nil)
)

// App holds the wired components.
type App struct {
	Store   *capsule.Store
	Journal *service.JournalService
	Metrics *metrics.Collector
	Config  config.Config

	backend Backend
	close   func(ctx context.Context) error
	logger  *slog.Logger
}

// New opens the configured backend and builds the core on top of it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mc := metrics.NewCollector()

	backend, closeFn, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metric, err := vectorindex.MetricByName(cfg.Metric)
	if err != nil {
		_ = closeFn(ctx)
		return nil, err
	}

	embedder, err := embedding.New(cfg, logger)
	if err != nil {
		_ = closeFn(ctx)
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	model, err := llm.NewModel(cfg, logger)
	if err != nil {
		_ = closeFn(ctx)
		return nil, fmt.Errorf("init model: %w", err)
	}
	var generator service.Generator
	if model != nil {
		generator = model
	}

	store := capsule.New(
		entrylog.New(backend),
		streak.New(backend),
		vectorindex.New(backend, vectorindex.WithMetric(metric), vectorindex.WithMaxK(cfg.MaxK)),
		embedder,
		capsule.WithLogger(logger),
		capsule.WithMetrics(mc),
		capsule.WithEmbedTimeout(cfg.EmbedTimeout),
	)
	journal := service.NewJournalService(store, generator,
		service.WithLogger(logger),
		service.WithMetrics(mc),
		service.WithGenerateTimeout(cfg.LLMTimeout),
	)

	logger.Info("capsule ready",
		"backend", cfg.Backend,
		"embedder", embedder.Model(),
		"dimension", embedder.Dimension(),
		"metric", metric.Name(),
		"generator", generator != nil,
	)

	return &App{
		Store:   store,
		Journal: journal,
		Metrics: mc,
		Config:  cfg,
		backend: backend,
		close:   closeFn,
		logger:  logger,
	}, nil
}

func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (Backend, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendBadger, "":
		dbCfg := localdb.DefaultConfig(cfg.DataDir)
		if cfg.InMemory {
			dbCfg = localdb.InMemoryConfig()
		}
		dbCfg.Logger = logger
		d, err := localdb.Open(dbCfg)
		if err != nil {
			return nil, nil, err
		}
		return d, func(context.Context) error { return d.Close() }, nil

	case config.BackendSurreal:
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}
		client, err := db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := client.InitSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, nil, fmt.Errorf("initialize schema: %w", err)
		}
		return client, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
}

// Users lists every user with recorded streak metadata.
func (a *App) Users(ctx context.Context) ([]string, error) {
	return a.backend.ListUsers(ctx)
}

// WipeData deletes all data. Use for testing only.
func (a *App) WipeData(ctx context.Context) error {
	return a.backend.WipeData(ctx)
}

// Close releases the backend.
func (a *App) Close(ctx context.Context) error {
	if a.close == nil {
		return nil
	}
	a.logger.Debug("closing backend")
	return a.close(ctx)
}
