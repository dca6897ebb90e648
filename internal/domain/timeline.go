package domain

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// PeriodTag is a labelled time interval used to categorise timeline entries.
// EndTime is absent while the tag is still active.
type PeriodTag struct {
	ID        int64     `json:"id,omitempty"`
	TagName   string    `json:"tagName"`
	StartTime Timestamp `json:"startTime"`
	EndTime   Timestamp `json:"endTime"`
	Color     string    `json:"color,omitempty"`
	Source    string    `json:"source,omitempty"`
	IsActive  bool      `json:"isActive,omitempty"`
}

// DurationField names one of the duration columns carried by a timeline item.
type DurationField string

const (
	// StayDuration is the length of a stay, in seconds.
	StayDuration DurationField = "stayDuration"
	// TripDuration is the length of a trip, in seconds.
	TripDuration DurationField = "tripDuration"
	// GapDuration is the length of a data gap, in seconds.
	GapDuration DurationField = "durationSeconds"
)

// TimelineItem is a stay, trip or data gap anchored at Timestamp.
// Only the duration field matching the item kind is normally set.
type TimelineItem struct {
	Timestamp       Timestamp `json:"timestamp"`
	StayDuration    Seconds   `json:"stayDuration,omitempty"`
	TripDuration    Seconds   `json:"tripDuration,omitempty"`
	DurationSeconds Seconds   `json:"durationSeconds,omitempty"`
}

// Seconds is a duration in seconds decoded leniently: a JSON number or a
// numeric string is taken as is, anything else reads as 0.
type Seconds float64

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(b []byte) error {
	text := string(bytes.TrimSpace(b))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) {
		v = 0
	}
	*s = Seconds(v)
	return nil
}

// Duration returns the value of the named duration field, in seconds.
// Unknown field names yield 0.
func (it TimelineItem) Duration(field DurationField) float64 {
	switch field {
	case StayDuration:
		return float64(it.StayDuration)
	case TripDuration:
		return float64(it.TripDuration)
	case GapDuration:
		return float64(it.DurationSeconds)
	default:
		return 0
	}
}

// Photo is an image from the user's photo library with optional geolocation.
type Photo struct {
	ID               string        `json:"id"`
	OriginalFileName string        `json:"originalFileName,omitempty"`
	TakenAt          Timestamp     `json:"takenAt"`
	CreatedAt        Timestamp     `json:"createdAt"`
	Latitude         OptionalFloat `json:"latitude"`
	Longitude        OptionalFloat `json:"longitude"`
	ThumbnailURL     string        `json:"thumbnailUrl,omitempty"`
	DownloadURL      string        `json:"downloadUrl,omitempty"`
}

// Coordinates returns the photo position when both axes are present.
func (p Photo) Coordinates() (lat, lng float64, ok bool) {
	lat, latOK := p.Latitude.Get()
	lng, lngOK := p.Longitude.Get()
	if !latOK || !lngOK {
		return 0, 0, false
	}
	return lat, lng, true
}

// Instant returns when the photo was taken, falling back to when it was
// created in the library.
func (p Photo) Instant() Timestamp {
	if !p.TakenAt.IsZero() {
		return p.TakenAt
	}
	return p.CreatedAt
}
