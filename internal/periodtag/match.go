// Package periodtag finds the period tag that applies to a point or span of
// time on the timeline.
package periodtag

import (
	"math"

	"github.com/pkordes/geopulse-companion/internal/domain"
)

// span is a closed interval in epoch milliseconds.
type span struct {
	start, end int64
}

// tagSpan resolves the interval a tag covers. An absent end is open-ended.
// A missing start, or an end that is present but unreadable, disqualifies the tag.
func tagSpan(tag domain.PeriodTag) (span, bool) {
	start, ok := tag.StartTime.EpochMillis()
	if !ok {
		return span{}, false
	}
	if tag.EndTime.IsZero() {
		return span{start: start, end: math.MaxInt64}, true
	}
	end, ok := tag.EndTime.EpochMillis()
	if !ok {
		return span{}, false
	}
	return span{start: start, end: end}, true
}

// FindForInterval returns the tag overlapping [start, end] that began most
// recently. Tags sharing that start keep their input order, so the first one
// wins. Boundaries are inclusive: a tag ending exactly at start still matches.
//
// An invalid start yields no match. An invalid or absent end collapses the
// query to the single instant start.
func FindForInterval(start, end domain.Timestamp, tags []domain.PeriodTag) (domain.PeriodTag, bool) {
	qs, ok := start.EpochMillis()
	if !ok {
		return domain.PeriodTag{}, false
	}
	qe, ok := end.EpochMillis()
	if !ok {
		qe = qs
	}

	best := -1
	var bestStart int64
	for i, tag := range tags {
		r, ok := tagSpan(tag)
		if !ok {
			continue
		}
		if qs > r.end || qe < r.start {
			continue
		}
		if best == -1 || r.start > bestStart {
			best, bestStart = i, r.start
		}
	}
	if best == -1 {
		return domain.PeriodTag{}, false
	}
	return tags[best], true
}

// FindForTimestamp returns the best tag covering a single instant.
func FindForTimestamp(ts domain.Timestamp, tags []domain.PeriodTag) (domain.PeriodTag, bool) {
	return FindForInterval(ts, ts, tags)
}

// FindForVisit returns the best tag overlapping a stay. The stay spans its
// timestamp plus StayDuration seconds; a zero or negative duration is treated
// as a single instant.
func FindForVisit(visit domain.TimelineItem, tags []domain.PeriodTag) (domain.PeriodTag, bool) {
	startMs, ok := visit.Timestamp.EpochMillis()
	if !ok {
		return domain.PeriodTag{}, false
	}
	endMs := startMs
	if d := float64(visit.StayDuration); d > 0 && !math.IsInf(d, 1) {
		if add := domain.SaturatingInt64(d * 1000); add > math.MaxInt64-startMs {
			endMs = math.MaxInt64
		} else {
			endMs = startMs + add
		}
	}
	return FindForInterval(domain.TimestampFromMillis(startMs), domain.TimestampFromMillis(endMs), tags)
}
