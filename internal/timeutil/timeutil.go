// Package timeutil parses the heterogeneous date strings that feeds and
// LLM-facing JSON carry, normalizing every result to naive UTC: a time.Time
// in the UTC location with no meaningful timezone offset retained beyond it.
package timeutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadDate is returned when none of the supported layouts parse a value.
var ErrBadDate = errors.New("timeutil: unsupported date format")

// layouts lists every format §4.1 requires: RFC822/RFC822Z/RFC1123/RFC1123Z,
// a GMT-suffixed variant gofeed commonly emits, and ISO-8601 with or without
// fractional seconds / trailing Z.
var layouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 GMT",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse converts a heterogeneous date string to naive UTC. An empty string
// returns "now" in naive UTC, matching feeds with no updated header.
func Parse(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Now(), nil
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return ToNaiveUTC(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrBadDate, raw)
}

// ToNaiveUTC converts t to UTC and strips any meaningful timezone
// association, used both at ingress and when reading rows written by an
// older, tz-aware revision of the catalog.
func ToNaiveUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}

// Now returns the current instant in naive UTC.
func Now() time.Time {
	return ToNaiveUTC(time.Now())
}

// FormatNaiveUTC renders t (assumed already naive UTC) as the RFC3339 string
// the catalog stores, e.g. "2025-06-04T14:15:14Z".
func FormatNaiveUTC(t time.Time) string {
	return ToNaiveUTC(t).Format(time.RFC3339)
}
