// Package timezone holds the user's time zone preference and the calendar
// helpers that depend on it.
package timezone

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// legacyNames maps zone names some platforms still report to the names the
// GeoPulse server accepts.
var legacyNames = map[string]string{
	"Europe/Kiev": "Europe/Kyiv",
}

// Normalize maps legacy zone names to their current IANA name.
func Normalize(name string) string {
	if mapped, ok := legacyNames[name]; ok {
		return mapped
	}
	return name
}

// Detect returns the host's zone name, normalized, or UTC when it cannot be
// determined.
func Detect() string {
	if tz := os.Getenv("TZ"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			return Normalize(tz)
		}
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return Normalize(name)
	}
	return domain.DefaultTimezone
}

// Context is the process-wide time zone in effect for the signed-in user.
// The zero value is not usable; construct with New.
type Context struct {
	mu   sync.RWMutex
	name string
	loc  *time.Location
	log  *slog.Logger
}

// New returns a Context set to UTC.
func New(logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{name: domain.DefaultTimezone, loc: time.UTC, log: logger}
}

// SetTimezone switches the context to name. Empty or unknown names fall back
// to UTC; the fallback is logged, not returned.
func (c *Context) SetTimezone(name string) {
	name = Normalize(name)
	if name == "" {
		name = domain.DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		c.log.Warn("unknown time zone, using UTC", "timezone", name, "error", err)
		name, loc = domain.DefaultTimezone, time.UTC
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.name, c.loc = name, loc
}

// Name returns the current zone name.
func (c *Context) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Location returns the current zone.
func (c *Context) Location() *time.Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loc
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// EndOfDay returns the last millisecond of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return StartOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// ParseDay reads a calendar date ("2006-01-02") or full timestamp as a day in
// loc. Bare dates name the day in loc itself rather than in UTC.
func ParseDay(s string, loc *time.Location) (time.Time, bool) {
	if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return d, true
	}
	ts := domain.ParseTimestamp(s)
	if !ts.Valid() {
		return time.Time{}, false
	}
	return ts.Time().In(loc), true
}
