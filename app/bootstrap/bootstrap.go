// Package bootstrap wires configuration into a running task service. Both
// entry points (the MCP stdio server and the REST server) go through Open.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tasktree-go/app/clock"
	"tasktree-go/app/config"
	"tasktree-go/app/services"
	"tasktree-go/app/store"
)

// closeTimeout bounds backend shutdown.
const closeTimeout = 10 * time.Second

// NewLogger builds the process logger. Output must never be stdout for the
// stdio MCP server, so callers pass the writer explicitly.
func NewLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, options)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, options)), nil
	default:
		return nil, fmt.Errorf("log.format: want json or text, got %q", cfg.Format)
	}
}

// OpenBackend opens the backend selected by cfg.Store.Backend.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		logger.Warn("using the in-memory store; tasks are lost on exit")
		return store.NewMemoryBackend(), nil

	case config.BackendSQLite:
		return store.OpenSQLite(ctx, store.SQLiteConfig{
			Path:     cfg.SQLite.Path,
			PoolSize: cfg.SQLite.PoolSize,
			Logger:   logger.With("component", "sqlite"),
		})

	case config.BackendNeo4j:
		driver, err := config.InitNeo4j(cfg.Neo4j)
		if err != nil {
			return nil, fmt.Errorf("creating neo4j driver: %w", err)
		}
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
		defer cancel()
		backend, err := store.NewNeo4jBackend(connectCtx, driver, cfg.Neo4j.Database, logger.With("component", "neo4j"))
		if err != nil {
			_ = driver.Close(context.Background())
			return nil, err
		}
		return backend, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Store.Backend)
	}
}

// Open opens the configured backend, loads the tree and returns a service
// over it. The returned cleanup closes the backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services.TaskService, func(), error) {
	backend, err := OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	adapter := store.NewAdapter(backend,
		store.WithTimeout(cfg.Store.Timeout),
		store.WithLogger(logger.With("component", "store")),
	)
	svc, err := services.Open(ctx, adapter, clock.Real(), logger.With("component", "service"))
	if err != nil {
		_ = backend.Close(context.Background())
		return nil, nil, err
	}
	logger.Info("task service ready", "backend", cfg.Store.Backend, "root_id", svc.RootID())

	cleanup := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := svc.Close(closeCtx); err != nil {
			logger.Error("closing store", "error", err)
		}
	}
	return svc, cleanup, nil
}
