// Package photomatch selects the photos taken during a timeline item.
package photomatch

import (
	"math"
	"time"

	"github.com/pkordes/geopulse-companion/internal/domain"
	"github.com/pkordes/geopulse-companion/internal/timezone"
)

// Options controls how the photo window is derived from a timeline item.
type Options struct {
	// Field names the item's duration column that extends the window.
	Field domain.DurationField

	// ClampToDay clips the window to Day in Location. The timeline renders one
	// day at a time, so a stay that started yesterday only shows today's photos.
	ClampToDay bool

	// Day is the calendar day being rendered. Required when ClampToDay is set.
	Day time.Time

	// Location is the user's time zone. Nil means UTC.
	Location *time.Location
}

// Window returns the instant range [start, end] covered by item under opts.
// ok is false when the item has no usable timestamp, when clamping is
// requested without a day, or when clamping leaves nothing.
func Window(item domain.TimelineItem, opts Options) (start, end time.Time, ok bool) {
	if !item.Timestamp.Valid() {
		return time.Time{}, time.Time{}, false
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	seconds := item.Duration(opts.Field)
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	start = item.Timestamp.Time().In(loc)
	end = start.Add(time.Duration(domain.SaturatingInt64(seconds * float64(time.Second))))

	if opts.ClampToDay {
		if opts.Day.IsZero() {
			return time.Time{}, time.Time{}, false
		}
		dayStart := timezone.StartOfDay(opts.Day, loc)
		dayEnd := timezone.EndOfDay(opts.Day, loc)
		if dayStart.After(start) {
			start = dayStart
		}
		if dayEnd.Before(end) {
			end = dayEnd
		}
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// Match returns the photos whose instant falls inside the item's window,
// inclusive, in input order. The result is never nil.
func Match(item domain.TimelineItem, photos []domain.Photo, opts Options) []domain.Photo {
	out := []domain.Photo{}
	if len(photos) == 0 {
		return out
	}
	start, end, ok := Window(item, opts)
	if !ok {
		return out
	}
	lo, hi := start.UnixMilli(), end.UnixMilli()

	for _, p := range photos {
		ms, ok := p.Instant().EpochMillis()
		if !ok {
			continue
		}
		if ms >= lo && ms <= hi {
			out = append(out, p)
		}
	}
	return out
}
