// Package export produces download and subscription representations of
// a filtered event set.
package export

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "racecal/internal/log"
	"racecal/internal/model"
)

const productID = "-//racecal//台灣路跑賽事//TW"

// ICS writes the events as an iCalendar attachment. Events whose race
// date did not parse cannot be placed on a calendar and are skipped.
func ICS(w http.ResponseWriter, events []model.Event) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=racecal_events.ics`)
	writeCalendar(w, events, false)
}

// SubscriptionICS writes the events as an inline publish feed for
// calendar subscriptions (no attachment header, METHOD:PUBLISH).
func SubscriptionICS(w http.ResponseWriter, events []model.Event) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	writeCalendar(w, events, true)
}

func writeCalendar(w http.ResponseWriter, events []model.Event, subscription bool) {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetCalscale("GREGORIAN")
	if subscription {
		cal.SetMethod(ical.MethodPublish)
	}

	now := time.Now().UTC()
	for _, e := range events {
		if !e.RaceDate.Valid {
			continue
		}
		day := e.RaceDate.Time

		ev := cal.AddEvent(eventUID(e))
		ev.SetDtStampTime(now)
		ev.SetAllDayStartAt(day)
		ev.SetAllDayEndAt(day.AddDate(0, 0, 1))
		ev.SetSummary(e.Name)
		ev.SetLocation(e.Location)
		ev.SetDescription(eventDescription(e))
		if e.Website != "" {
			ev.SetURL(e.Website)
		}
	}

	if _, err := fmt.Fprint(w, cal.Serialize()); err != nil {
		appLog.Error("ics export write failed", err)
	}
}

// eventUID derives a stable UID so calendar apps can update subscribed
// events in place across refreshes.
func eventUID(e model.Event) string {
	sum := sha256.Sum256([]byte(e.Name + "|" + e.RaceDate.Raw + "|" + e.Location))
	return hex.EncodeToString(sum[:8]) + "@racecal"
}

func eventDescription(e model.Event) string {
	desc := e.Location + " " + e.Name
	if e.RegistrationDeadline.Raw != "" {
		desc += "（報名截止 " + e.RegistrationDeadline.String() + "）"
	}
	if e.Source != "" {
		desc += " 來源：" + e.Source
	}
	return desc
}

// CSV writes the events as a CSV attachment. Date columns carry the
// canonical form for valid dates and the original feed text otherwise.
func CSV(w http.ResponseWriter, events []model.Event) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=racecal_events.csv`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"name", "raceDate", "registrationDeadline", "location", "registrationOpen", "website", "source"})
	for _, e := range events {
		open := "false"
		if e.RegistrationOpen {
			open = "true"
		}
		_ = cw.Write([]string{
			e.Name,
			e.RaceDate.String(),
			e.RegistrationDeadline.String(),
			e.Location,
			open,
			e.Website,
			e.Source,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		appLog.Error("csv export write failed", err)
	}
}

// jsonEvent mirrors the feed record shape so an export round-trips
// into the same document format the service consumes.
type jsonEvent struct {
	Name                 string `json:"name"`
	RaceDate             string `json:"raceDate"`
	RegistrationDeadline string `json:"registrationDeadline"`
	Location             string `json:"location"`
	RegistrationOpen     bool   `json:"registrationOpen"`
	Website              string `json:"website"`
	Source               string `json:"source"`
}

// JSON writes the events as a JSON attachment in the feed's document
// shape. Raw date text is preserved as-is.
func JSON(w http.ResponseWriter, events []model.Event, generatedAt string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=racecal_events.json`)

	out := struct {
		GeneratedAt string      `json:"generatedAt,omitempty"`
		Events      []jsonEvent `json:"events"`
	}{GeneratedAt: generatedAt, Events: make([]jsonEvent, 0, len(events))}

	for _, e := range events {
		out.Events = append(out.Events, jsonEvent{
			Name:                 e.Name,
			RaceDate:             e.RaceDate.Raw,
			RegistrationDeadline: e.RegistrationDeadline.Raw,
			Location:             e.Location,
			RegistrationOpen:     e.RegistrationOpen,
			Website:              e.Website,
			Source:               e.Source,
		})
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		appLog.Error("json export write failed", err)
	}
}
