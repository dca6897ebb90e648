package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/geopulse-companion/internal/config"
	"github.com/pkordes/geopulse-companion/internal/repo"
	"github.com/pkordes/geopulse-companion/internal/storage"
	"github.com/pkordes/geopulse-companion/migrations"
)

// OpenStorage returns the KV backend selected by cfg.StorageDriver and a
// function that releases it. A nil logger means slog.Default().
func OpenStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.KV, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemory(), func() {}, nil

	case config.DriverFile:
		return storage.NewFile(cfg.StoragePath), func() {}, nil

	case config.DriverSQLite:
		kv, err := storage.OpenSQLite(ctx, cfg.StoragePath)
		if err != nil {
			return nil, nil, fmt.Errorf("app.OpenStorage: %w", err)
		}
		return kv, func() {
			if err := kv.Close(); err != nil {
				logger.Warn("failed to close sqlite storage", "error", err)
			}
		}, nil

	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)

	default:
		return nil, nil, fmt.Errorf("app.OpenStorage: unknown storage driver %q", cfg.StorageDriver)
	}
}

// openPostgres connects, applies pending migrations and registers this
// installation so its rows can be written.
func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.KV, func(), error) {
	// pgxpool.New does not open connections; Ping verifies the DB is reachable.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("app.openPostgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("app.openPostgres: ping: %w", err)
	}

	if err := migrate(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, err
	}

	kv := repo.NewStorageRepo(pool, cfg.ClientID)
	name, _ := os.Hostname()
	client, err := kv.Register(ctx, name)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("app.openPostgres: %w", err)
	}
	logger.Info("postgres storage ready", "client_id", client.ID, "client_name", client.Name)
	return kv, pool.Close, nil
}

// migrate runs the embedded goose migrations over a database/sql view of pool.
func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	results, err := migrations.Up(ctx, db)
	if err != nil {
		return fmt.Errorf("app.migrate: %w", err)
	}
	for _, r := range results {
		logger.Info("applied migration", "version", r.Source.Version, "duration_ms", r.Duration.Milliseconds())
	}
	return nil
}
