// Package testutil provides Postgres helpers for integration tests. Every
// helper skips the calling test when TEST_DATABASE_URL is unset.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/geopulse-companion/migrations"
)

// DSNEnv names the variable holding the test database URL.
const DSNEnv = "TEST_DATABASE_URL"

var (
	migrateOnce sync.Once
	migrateErr  error
)

// DSN returns the test database URL or skips t.
func DSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skip(DSNEnv + " not set; skipping integration test")
	}
	return dsn
}

// NewPool returns a pool on the test database with the schema migrated.
// Migrations run once per test binary. The pool closes with t.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool := connect(t)

	migrateOnce.Do(func() {
		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()
		_, migrateErr = migrations.Up(context.Background(), db)
	})
	if migrateErr != nil {
		t.Fatalf("testutil.NewPool: %v", migrateErr)
	}
	return pool
}

// NewTx begins a transaction on a migrated pool and rolls it back when t
// finishes, so each test sees only its own rows.
func NewTx(t *testing.T) pgx.Tx {
	t.Helper()
	tx, err := NewPool(t).Begin(context.Background())
	if err != nil {
		t.Fatalf("testutil.NewTx: begin: %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback(context.Background()) })
	return tx
}

// NewSQLDB returns a database/sql handle on the test database without
// touching the schema. goose drives migrations through it.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()
	db := stdlib.OpenDBFromPool(connect(t))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, DSN(t))
	if err != nil {
		t.Fatalf("testutil: open pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("testutil: ping: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
