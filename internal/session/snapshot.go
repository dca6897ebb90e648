package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/storage"
)

// SnapshotKey is the storage key of the persisted user snapshot.
const SnapshotKey = "userInfo"

// SnapshotStore persists the normalized user in a storage.KV.
type SnapshotStore struct {
	kv  storage.KV
	log *slog.Logger
}

// NewSnapshotStore returns a SnapshotStore over kv.
func NewSnapshotStore(kv storage.KV, logger *slog.Logger) *SnapshotStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotStore{kv: kv, log: logger}
}

// Read returns the stored user. A missing, unreadable or id-less snapshot
// reads as no user; read failures are logged.
func (s *SnapshotStore) Read(ctx context.Context) (domain.User, bool) {
	raw, ok, err := s.kv.Get(ctx, SnapshotKey)
	if err != nil {
		s.log.WarnContext(ctx, "failed to read user snapshot", "error", err)
		return domain.User{}, false
	}
	if !ok {
		return domain.User{}, false
	}
	u, ok := NormalizeUser([]byte(raw))
	if !ok {
		s.log.WarnContext(ctx, "ignoring unreadable user snapshot")
	}
	return u, ok
}

// Write stores u as the snapshot.
func (s *SnapshotStore) Write(ctx context.Context, u domain.User) error {
	u.UserID = u.ID
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("session.SnapshotStore.Write: %w", err)
	}
	if err := s.kv.Set(ctx, SnapshotKey, string(b)); err != nil {
		return fmt.Errorf("session.SnapshotStore.Write: %w", err)
	}
	return nil
}

// Clear erases the snapshot.
func (s *SnapshotStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, SnapshotKey); err != nil {
		return fmt.Errorf("session.SnapshotStore.Clear: %w", err)
	}
	return nil
}
