package model

import (
	"regexp"
	"strings"
	"time"
)

// Event represents one race as sourced from the events feed. Fields are
// carried through as-is; a date that did not parse keeps its original
// text (see Date). Events are never mutated after load.
type Event struct {
	Name                 string
	RaceDate             Date
	RegistrationDeadline Date
	Location             string
	RegistrationOpen     bool
	Website              string
	Source               string
}

// Date is the explicit result of parsing a calendar-date string. Raw
// always holds the original feed text; Time/Valid are only meaningful
// when the text parsed as a date. Comparisons are date-only, so Time is
// always midnight UTC.
type Date struct {
	Raw   string
	Time  time.Time
	Valid bool
}

// dateLayouts mirrors the formats the feed pipeline emits.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
}

var looseDatePattern = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)

// ParseDate parses a calendar-date string into a Date. Empty or
// unparseable input yields an invalid Date that still carries the raw
// text for verbatim display.
func ParseDate(raw string) Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Date{Raw: raw}
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Date{Raw: raw, Time: t, Valid: true}
		}
	}

	// Loose fallback for single-digit month/day forms like 2024-3-9.
	if m := looseDatePattern.FindStringSubmatch(s); m != nil {
		if t, err := time.ParseInLocation("2006-1-2", m[1]+"-"+m[2]+"-"+m[3], time.UTC); err == nil {
			return Date{Raw: raw, Time: t, Valid: true}
		}
	}

	return Date{Raw: raw}
}

// String returns the canonical YYYY-MM-DD form for valid dates and the
// original text otherwise.
func (d Date) String() string {
	if !d.Valid {
		return d.Raw
	}
	return d.Time.Format("2006-01-02")
}

// Before reports whether d falls strictly before the given calendar day.
// Invalid dates compare before nothing.
func (d Date) Before(day time.Time) bool {
	if !d.Valid {
		return false
	}
	return d.Time.Before(truncateToDay(day))
}

// After reports whether d falls strictly after the given calendar day.
// Invalid dates compare after nothing.
func (d Date) After(day time.Time) bool {
	if !d.Valid {
		return false
	}
	return d.Time.After(truncateToDay(day))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DistinctLocations returns the unique location values of events in
// first-seen order. It feeds the location selector options.
func DistinctLocations(events []Event) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.Location == "" {
			continue
		}
		if _, ok := seen[ev.Location]; ok {
			continue
		}
		seen[ev.Location] = struct{}{}
		out = append(out, ev.Location)
	}
	return out
}
