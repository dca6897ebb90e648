// Package theme manages the light/dark/system theme preference.
package theme

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkordes/geopulse-companion/internal/storage"
)

// Mode is a theme preference.
type Mode string

const (
	Light  Mode = "light"
	Dark   Mode = "dark"
	System Mode = "system"
)

const (
	// StorageKey holds the current mode.
	StorageKey = "themeMode"
	// LegacyKey held "true"/"false" before modes existed. It is read as a
	// fallback and removed on every write.
	LegacyKey = "darkMode"
	// DarkClass is the class toggled on the document root while dark.
	DarkClass = "p-dark"
)

// Normalize maps s to a Mode, case-insensitively. Unknown values are System.
func Normalize(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Light, Dark, System:
		return m
	default:
		return System
	}
}

// ClassToggler adds or removes a class on the document root.
type ClassToggler interface {
	Toggle(class string, on bool)
}

// SystemPreference reports the operating system's dark preference.
type SystemPreference interface {
	IsDark() bool
	// Subscribe registers fn for preference changes and returns a function
	// that removes it.
	Subscribe(fn func(dark bool)) (stop func())
}

// Manager applies and persists the theme mode.
type Manager struct {
	kv      storage.KV
	classes ClassToggler
	system  SystemPreference
	log     *slog.Logger

	// applyMu serializes whole mode changes so the stored value and the
	// class follow the last one.
	applyMu sync.Mutex

	mu   sync.Mutex
	mode Mode
	stop func()
}

// NewManager returns a Manager in System mode. system may be nil, in which
// case the system preference is light.
func NewManager(kv storage.KV, classes ClassToggler, system SystemPreference, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{kv: kv, classes: classes, system: system, log: logger, mode: System}
}

// Initialize loads the stored mode, rewrites it under the current key, applies
// it and starts following the system preference.
func (m *Manager) Initialize(ctx context.Context) Mode {
	return m.set(ctx, m.Stored(ctx))
}

// Set switches to mode (normalized), persists and applies it.
func (m *Manager) Set(ctx context.Context, mode string) Mode {
	return m.set(ctx, Normalize(mode))
}

func (m *Manager) set(ctx context.Context, mode Mode) Mode {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	m.mode = mode
	dark := m.resolve(mode)
	if m.stop == nil && m.system != nil {
		m.stop = m.system.Subscribe(m.systemChanged)
	}
	m.mu.Unlock()

	m.persist(ctx, mode)
	m.classes.Toggle(DarkClass, dark)
	return mode
}

// Mode returns the current mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// IsDark reports whether the current mode resolves to dark.
func (m *Manager) IsDark() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolve(m.mode)
}

// Stored returns the persisted mode: the current key when valid, else the
// legacy boolean, else System. Read failures are logged.
func (m *Manager) Stored(ctx context.Context) Mode {
	v, ok, err := m.kv.Get(ctx, StorageKey)
	if err != nil {
		m.log.WarnContext(ctx, "failed to read theme mode", "error", err)
		return System
	}
	if mode := Mode(v); ok && Normalize(v) == mode {
		return mode
	}

	legacy, ok, err := m.kv.Get(ctx, LegacyKey)
	if err != nil {
		m.log.WarnContext(ctx, "failed to read legacy dark mode", "error", err)
		return System
	}
	switch {
	case ok && legacy == "true":
		return Dark
	case ok && legacy == "false":
		return Light
	default:
		return System
	}
}

// Close stops following the system preference.
func (m *Manager) Close() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// systemChanged re-applies System mode from the current preference.
func (m *Manager) systemChanged(bool) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	follow := m.mode == System
	dark := m.resolve(System)
	m.mu.Unlock()
	if follow {
		m.classes.Toggle(DarkClass, dark)
	}
}

// resolve must be called with m.mu held.
func (m *Manager) resolve(mode Mode) bool {
	switch mode {
	case Dark:
		return true
	case Light:
		return false
	default:
		return m.system != nil && m.system.IsDark()
	}
}

func (m *Manager) persist(ctx context.Context, mode Mode) {
	if err := m.kv.Set(ctx, StorageKey, string(mode)); err != nil {
		m.log.WarnContext(ctx, "failed to persist theme mode", "error", err)
		return
	}
	if err := m.kv.Remove(ctx, LegacyKey); err != nil {
		m.log.WarnContext(ctx, "failed to remove legacy dark mode", "error", err)
	}
}
