package source

import (
	"encoding/json"
	"errors"

	appLog "racecal/internal/log"
	"racecal/internal/model"
)

// Snapshot is one decoded events document, ready to seed the view.
type Snapshot struct {
	Events      []model.Event
	GeneratedAt string
	FromCache   bool
}

// document mirrors the JSON feed written by the scraping pipeline.
type document struct {
	GeneratedAt string     `json:"generatedAt"`
	Events      []eventDoc `json:"events"`
}

type eventDoc struct {
	Name                 string `json:"name"`
	RaceDate             string `json:"raceDate"`
	RegistrationDeadline string `json:"registrationDeadline"`
	Location             string `json:"location"`
	RegistrationOpen     bool   `json:"registrationOpen"`
	Website              string `json:"website"`
	Source               string `json:"source"`
}

// DecodeDocument parses an events document into a Snapshot. Records
// are constructed once here: dates go through model.ParseDate so that
// malformed values become explicit invalid dates instead of sentinel
// behavior downstream. Records without a name or location are dropped,
// and duplicates on (name, raceDate, location) are collapsed the same
// way the feed pipeline collapses them.
func DecodeDocument(body []byte) (Snapshot, error) {
	if len(body) == 0 {
		return Snapshot{}, errors.New("empty events document")
	}

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Snapshot{}, err
	}
	if doc.Events == nil {
		return Snapshot{}, errors.New("events document has no events field")
	}

	type dedupeKey struct {
		name, date, location string
	}
	seen := make(map[dedupeKey]struct{}, len(doc.Events))

	events := make([]model.Event, 0, len(doc.Events))
	skipped := 0
	for _, d := range doc.Events {
		if d.Name == "" || d.Location == "" {
			skipped++
			continue
		}
		key := dedupeKey{d.Name, d.RaceDate, d.Location}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		events = append(events, model.Event{
			Name:                 d.Name,
			RaceDate:             model.ParseDate(d.RaceDate),
			RegistrationDeadline: model.ParseDate(d.RegistrationDeadline),
			Location:             d.Location,
			RegistrationOpen:     d.RegistrationOpen,
			Website:              d.Website,
			Source:               d.Source,
		})
	}

	if skipped > 0 {
		appLog.Warn("events document had incomplete records", "skipped", skipped)
	}

	return Snapshot{
		Events:      events,
		GeneratedAt: doc.GeneratedAt,
	}, nil
}
