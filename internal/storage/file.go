package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a blocked lock attempt is retried.
const lockRetry = 25 * time.Millisecond

// File is a KV persisted as one JSON object on disk. An advisory lock file
// next to it serialises access between processes, so the CLI and the API
// server can share one store.
type File struct {
	path string
	lock *flock.Flock
}

// NewFile returns a File store at path. The file is created on first write.
func NewFile(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the location of the data file.
func (f *File) Path() string { return f.path }

// Get implements KV.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	if err := f.acquire(ctx, false); err != nil {
		return "", false, fmt.Errorf("storage.File.Get: %w", err)
	}
	defer f.lock.Unlock() //nolint:errcheck // unlock failure leaves nothing to recover

	data, err := f.load()
	if err != nil {
		return "", false, fmt.Errorf("storage.File.Get: %w", err)
	}
	v, ok := data[key]
	return v, ok, nil
}

// Set implements KV.
func (f *File) Set(ctx context.Context, key, value string) error {
	return f.update(ctx, "storage.File.Set", func(data map[string]string) {
		data[key] = value
	})
}

// Remove implements KV.
func (f *File) Remove(ctx context.Context, key string) error {
	return f.update(ctx, "storage.File.Remove", func(data map[string]string) {
		delete(data, key)
	})
}

// Keys implements Lister.
func (f *File) Keys(ctx context.Context) ([]string, error) {
	if err := f.acquire(ctx, false); err != nil {
		return nil, fmt.Errorf("storage.File.Keys: %w", err)
	}
	defer f.lock.Unlock() //nolint:errcheck // unlock failure leaves nothing to recover

	data, err := f.load()
	if err != nil {
		return nil, fmt.Errorf("storage.File.Keys: %w", err)
	}
	return slices.Sorted(maps.Keys(data)), nil
}

func (f *File) update(ctx context.Context, op string, mutate func(map[string]string)) error {
	if err := f.acquire(ctx, true); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer f.lock.Unlock() //nolint:errcheck // unlock failure leaves nothing to recover

	data, err := f.load()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	mutate(data)
	if err := f.save(data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// acquire takes the lock file, creating the store's directory first.
func (f *File) acquire(ctx context.Context, exclusive bool) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = f.lock.TryLockContext(ctx, lockRetry)
	} else {
		ok, err = f.lock.TryRLockContext(ctx, lockRetry)
	}
	if err != nil {
		return fmt.Errorf("locking %s: %w", f.path, err)
	}
	if !ok {
		return fmt.Errorf("locking %s: lock not acquired", f.path)
	}
	return nil
}

// load reads the store. A missing file is an empty store.
func (f *File) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path) //nolint:gosec // path comes from configuration
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}
	data := make(map[string]string)
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	return data, nil
}

// save writes through a temp file and rename so readers never see a torn file.
func (f *File) save(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing %s: %w", f.path, err)
	}
	return nil
}

var (
	_ KV     = (*File)(nil)
	_ Lister = (*File)(nil)
)
