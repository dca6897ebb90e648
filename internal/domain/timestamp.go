// Package domain contains the core data types shared by the GeoPulse companion.
// It has no dependencies on other internal packages and is imported by every
// layer (matchers, session, apiclient, handler).
package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

type timestampState uint8

const (
	timestampAbsent timestampState = iota
	timestampValid
	timestampInvalid
)

// timestampLayouts are tried in order when parsing a string timestamp.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is an instant as the GeoPulse API encodes it: an RFC 3339 string,
// epoch milliseconds, or null.
//
// A Timestamp is in one of three states. The zero value is absent (null or
// missing). Decoding never fails: input that cannot be read as an instant
// yields an invalid Timestamp, which matchers treat as "no match".
type Timestamp struct {
	ms    int64
	state timestampState
}

// TimestampFromTime returns a valid Timestamp for t. The zero time.Time is
// treated as absent.
func TimestampFromTime(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{ms: t.UnixMilli(), state: timestampValid}
}

// TimestampFromMillis returns a valid Timestamp for epoch milliseconds.
func TimestampFromMillis(ms int64) Timestamp {
	return Timestamp{ms: ms, state: timestampValid}
}

// ParseTimestamp reads s using the accepted layouts. An empty string is absent.
func ParseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Timestamp{ms: t.UnixMilli(), state: timestampValid}
		}
	}
	return Timestamp{state: timestampInvalid}
}

// TimestampOf normalizes the representations callers hand us: time.Time,
// *time.Time, Timestamp, integer or float epoch milliseconds, json.Number and
// strings. nil is absent; anything else is invalid.
func TimestampOf(v any) Timestamp {
	switch x := v.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return x
	case time.Time:
		return TimestampFromTime(x)
	case *time.Time:
		if x == nil {
			return Timestamp{}
		}
		return TimestampFromTime(*x)
	case int:
		return TimestampFromMillis(int64(x))
	case int64:
		return TimestampFromMillis(x)
	case float64:
		return timestampFromFloat(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Timestamp{state: timestampInvalid}
		}
		return timestampFromFloat(f)
	case string:
		return ParseTimestamp(x)
	default:
		return Timestamp{state: timestampInvalid}
	}
}

func timestampFromFloat(f float64) Timestamp {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Timestamp{state: timestampInvalid}
	}
	return TimestampFromMillis(SaturatingInt64(f))
}

// SaturatingInt64 converts f to int64, clamping values outside the int64
// range to its bounds. NaN converts to 0.
func SaturatingInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(f)
	}
}

// IsZero reports whether the timestamp is absent.
func (t Timestamp) IsZero() bool { return t.state == timestampAbsent }

// Valid reports whether the timestamp holds a usable instant.
func (t Timestamp) Valid() bool { return t.state == timestampValid }

// EpochMillis returns the instant in epoch milliseconds and whether it is valid.
func (t Timestamp) EpochMillis() (int64, bool) {
	return t.ms, t.state == timestampValid
}

// Time returns the instant in UTC, or the zero time when not valid.
func (t Timestamp) Time() time.Time {
	if t.state != timestampValid {
		return time.Time{}
	}
	return time.UnixMilli(t.ms).UTC()
}

// UnmarshalJSON accepts null, a JSON number (epoch milliseconds) or a string.
// It never returns an error.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = Timestamp{}
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = Timestamp{state: timestampInvalid}
			return nil
		}
		*t = ParseTimestamp(s)
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			*t = Timestamp{state: timestampInvalid}
			return nil
		}
		*t = timestampFromFloat(f)
	}
	return nil
}

// MarshalJSON writes valid instants as RFC 3339 strings in UTC and anything
// else as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.state != timestampValid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time().Format(time.RFC3339Nano))
}

// OptionalFloat is a JSON number that may be missing. Non-numeric input
// decodes as missing rather than failing the whole payload.
type OptionalFloat struct {
	v  float64
	ok bool
}

// Float returns a present OptionalFloat.
func Float(v float64) OptionalFloat { return OptionalFloat{v: v, ok: true} }

// Get returns the value and whether it is present and finite.
func (f OptionalFloat) Get() (float64, bool) {
	if !f.ok || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
		return 0, false
	}
	return f.v, true
}

// UnmarshalJSON accepts a JSON number; anything else is missing.
func (f *OptionalFloat) UnmarshalJSON(b []byte) error {
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
	if err != nil {
		*f = OptionalFloat{}
		return nil
	}
	*f = OptionalFloat{v: v, ok: true}
	return nil
}

// MarshalJSON writes the number, or null when missing.
func (f OptionalFloat) MarshalJSON() ([]byte, error) {
	v, ok := f.Get()
	if !ok {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}
