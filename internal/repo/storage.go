// Package repo contains the Postgres access code. Each resource has its own
// file; no business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/storage"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn and pgx.Tx.
// Integration tests pass a transaction that is rolled back after each test.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Client is one companion installation sharing the database.
type Client struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	LastSeen  time.Time
}

// StorageRepo is a storage.KV kept in the client_storage table. Every key is
// scoped to one client id, so several installations can share a database.
type StorageRepo struct {
	db       db
	clientID uuid.UUID
}

// NewStorageRepo returns the store for clientID. Call Register before the
// first write so the client row exists.
func NewStorageRepo(db db, clientID uuid.UUID) *StorageRepo {
	return &StorageRepo{db: db, clientID: clientID}
}

// Register creates the client row, or touches last_seen if it exists. The
// name of the first registration is preserved.
func (r *StorageRepo) Register(ctx context.Context, name string) (Client, error) {
	// DO UPDATE (rather than DO NOTHING) so RETURNING fires on conflict.
	const q = `
		INSERT INTO clients (id, name)
		VALUES (@id, @name)
		ON CONFLICT (id) DO UPDATE SET last_seen = now()
		RETURNING id, name, created_at, last_seen`

	c, err := scanClient(r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": r.clientID, "name": name}))
	if err != nil {
		return Client{}, fmt.Errorf("repo.StorageRepo.Register: %w", err)
	}
	return c, nil
}

// Get implements storage.KV.
func (r *StorageRepo) Get(ctx context.Context, key string) (string, bool, error) {
	const q = `
		SELECT value
		FROM client_storage
		WHERE client_id = @client_id AND key = @key`

	var v string
	err := r.db.QueryRow(ctx, q, pgx.NamedArgs{"client_id": r.clientID, "key": key}).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("repo.StorageRepo.Get: %w", err)
	}
	return v, true, nil
}

// Set implements storage.KV.
func (r *StorageRepo) Set(ctx context.Context, key, value string) error {
	const q = `
		INSERT INTO client_storage (client_id, key, value)
		VALUES (@client_id, @key, @value)
		ON CONFLICT (client_id, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()`

	_, err := r.db.Exec(ctx, q, pgx.NamedArgs{"client_id": r.clientID, "key": key, "value": value})
	if err != nil {
		return fmt.Errorf("repo.StorageRepo.Set: %w", err)
	}
	return nil
}

// Remove implements storage.KV. Removing a missing key is not an error.
func (r *StorageRepo) Remove(ctx context.Context, key string) error {
	const q = `DELETE FROM client_storage WHERE client_id = @client_id AND key = @key`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"client_id": r.clientID, "key": key}); err != nil {
		return fmt.Errorf("repo.StorageRepo.Remove: %w", err)
	}
	return nil
}

// Keys returns the client's keys, ordered.
func (r *StorageRepo) Keys(ctx context.Context) ([]string, error) {
	const q = `
		SELECT key
		FROM client_storage
		WHERE client_id = @client_id
		ORDER BY key`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"client_id": r.clientID})
	if err != nil {
		return nil, fmt.Errorf("repo.StorageRepo.Keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("repo.StorageRepo.Keys: scan: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.StorageRepo.Keys: rows: %w", err)
	}
	return keys, nil
}

// scanClient maps a single row into a Client.
func scanClient(s scanner) (Client, error) {
	var (
		c  Client
		id pgtype.UUID
	)
	if err := s.Scan(&id, &c.Name, &c.CreatedAt, &c.LastSeen); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, domain.ErrNotFound
		}
		return Client{}, err
	}
	c.ID = uuid.UUID(id.Bytes)
	return c, nil
}

var (
	_ storage.KV     = (*StorageRepo)(nil)
	_ storage.Lister = (*StorageRepo)(nil)
)
