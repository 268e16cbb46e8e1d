package export

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racecal/internal/model"
)

func exportEvents() []model.Event {
	return []model.Event{
		{
			Name:                 "臺北馬拉松",
			RaceDate:             model.ParseDate("2024-03-10"),
			RegistrationDeadline: model.ParseDate("2024-02-15"),
			Location:             "台北",
			RegistrationOpen:     true,
			Website:              "https://example.com/taipei",
			Source:               "iRunner",
		},
		{
			Name:             "日期未定盃路跑",
			RaceDate:         model.ParseDate("未定"),
			Location:         "台中",
			RegistrationOpen: false,
		},
	}
}

func TestICS(t *testing.T) {
	w := httptest.NewRecorder()
	ICS(w, exportEvents())

	resp := w.Result()
	body := w.Body.String()

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")

	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "END:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:臺北馬拉松")
	assert.Contains(t, body, "LOCATION:台北")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20240310")
	assert.Contains(t, body, "DTEND;VALUE=DATE:20240311")

	// The event without a parseable date cannot be placed on a calendar.
	assert.NotContains(t, body, "日期未定盃路跑")
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
}

func TestSubscriptionICS(t *testing.T) {
	w := httptest.NewRecorder()
	SubscriptionICS(w, exportEvents())

	body := w.Body.String()
	assert.Contains(t, body, "METHOD:PUBLISH")
	assert.Empty(t, w.Result().Header.Get("Content-Disposition"), "subscription feed must be inline")
}

func TestICSStableUIDs(t *testing.T) {
	a := httptest.NewRecorder()
	b := httptest.NewRecorder()
	ICS(a, exportEvents())
	ICS(b, exportEvents())

	uid := func(body string) string {
		for _, line := range strings.Split(body, "\r\n") {
			if strings.HasPrefix(line, "UID:") {
				return line
			}
		}
		return ""
	}
	require.NotEmpty(t, uid(a.Body.String()))
	assert.Equal(t, uid(a.Body.String()), uid(b.Body.String()))
}

func TestCSV(t *testing.T) {
	w := httptest.NewRecorder()
	CSV(w, exportEvents())

	body := w.Body.String()
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "name,raceDate,registrationDeadline,location,registrationOpen,website,source", lines[0])
	assert.Contains(t, lines[1], "臺北馬拉松")
	assert.Contains(t, lines[1], "2024-03-10")
	// Unparseable dates export verbatim.
	assert.Contains(t, lines[2], "未定")
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, exportEvents(), "2024-02-01T06:00:00+08:00")

	var doc struct {
		GeneratedAt string `json:"generatedAt"`
		Events      []struct {
			Name     string `json:"name"`
			RaceDate string `json:"raceDate"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	assert.Equal(t, "2024-02-01T06:00:00+08:00", doc.GeneratedAt)
	require.Len(t, doc.Events, 2)
	assert.Equal(t, "2024-03-10", doc.Events[0].RaceDate)
	assert.Equal(t, "未定", doc.Events[1].RaceDate, "raw feed text survives a JSON round-trip")
}

func TestJSONEmptySet(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, nil, "")

	var doc struct {
		Events []any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.NotNil(t, doc.Events)
	assert.Empty(t, doc.Events)
}
