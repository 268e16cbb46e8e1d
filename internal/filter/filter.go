// Package filter derives the visible subset of race events from the
// user-selected criteria and computes the counts shown next to it. Both
// operations are pure; all state lives in internal/view.
package filter

import (
	"time"

	"racecal/internal/model"
)

// LocationAll is the location value meaning "no location constraint".
const LocationAll = "all"

// Criteria holds the user-selected narrowing constraints. The zero
// value is NOT the default; use Default.
type Criteria struct {
	// Location is either LocationAll or one of the distinct location
	// values observed in the loaded events. Matching is exact and
	// case-sensitive.
	Location string

	// Start and End are optional inclusive calendar-date bounds. End is
	// inclusive through the end of its day. Start after End is valid
	// and simply matches nothing.
	Start *time.Time
	End   *time.Time

	// OpenOnly excludes events whose registration is closed.
	OpenOnly bool
}

// Default returns the unrestricted criteria.
func Default() Criteria {
	return Criteria{Location: LocationAll}
}

// Apply returns the events matching c, preserving the relative order of
// the input. The input slice is never mutated and the result is always
// a fresh slice.
//
// An event whose race date did not parse is excluded whenever a Start
// or End bound is active; with no date bounds it is matched normally.
func Apply(events []model.Event, c Criteria) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if matches(ev, c) {
			out = append(out, ev)
		}
	}
	return out
}

func matches(ev model.Event, c Criteria) bool {
	if c.Location != LocationAll && ev.Location != c.Location {
		return false
	}
	if c.Start != nil {
		if !ev.RaceDate.Valid || ev.RaceDate.Before(*c.Start) {
			return false
		}
	}
	if c.End != nil {
		// Inclusive through end-of-day: only a race date on a later
		// calendar day falls outside the bound.
		if !ev.RaceDate.Valid || ev.RaceDate.After(*c.End) {
			return false
		}
	}
	if c.OpenOnly && !ev.RegistrationOpen {
		return false
	}
	return true
}

// Summary is the count triple displayed above the list.
type Summary struct {
	Total   int `json:"total"`
	Visible int `json:"visible"`
	Open    int `json:"open"`
}

// Summarize computes the summary counts for a loaded set and its
// currently visible subset.
func Summarize(events, filtered []model.Event) Summary {
	s := Summary{
		Total:   len(events),
		Visible: len(filtered),
	}
	for _, ev := range filtered {
		if ev.RegistrationOpen {
			s.Open++
		}
	}
	return s
}
