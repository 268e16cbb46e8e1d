package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
		want  time.Time
	}{
		{"iso", "2024-03-10", true, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"slashes", "2024/05/01", true, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"dots", "2024.12.31", true, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"single digit", "2024-3-9", true, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)},
		{"padded", "  2024-03-10  ", true, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"empty", "", false, time.Time{}},
		{"free text", "日期未定", false, time.Time{}},
		{"partial", "2024-03", false, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := ParseDate(tt.raw)
			assert.Equal(t, tt.valid, d.Valid)
			assert.Equal(t, tt.raw, d.Raw, "raw text must survive parsing")
			if tt.valid {
				assert.True(t, d.Time.Equal(tt.want), "got %v", d.Time)
			}
		})
	}
}

func TestDateString(t *testing.T) {
	assert.Equal(t, "2024-05-01", ParseDate("2024/05/01").String())
	assert.Equal(t, "未定", ParseDate("未定").String(), "invalid dates display verbatim")
	assert.Equal(t, "", ParseDate("").String())
}

func TestDateComparisons(t *testing.T) {
	d := ParseDate("2024-03-10")
	day := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	// Time-of-day on the bound must not matter.
	assert.False(t, d.Before(day))
	assert.False(t, d.After(day))
	assert.True(t, d.Before(day.AddDate(0, 0, 1)))
	assert.True(t, d.After(day.AddDate(0, 0, -1)))

	// Invalid dates never satisfy either comparison.
	bad := ParseDate("not a date")
	assert.False(t, bad.Before(day))
	assert.False(t, bad.After(day))
}

func TestDistinctLocations(t *testing.T) {
	events := []Event{
		{Name: "a", Location: "台北"},
		{Name: "b", Location: "高雄"},
		{Name: "c", Location: "台北"},
		{Name: "d", Location: ""},
		{Name: "e", Location: "花蓮"},
	}

	got := DistinctLocations(events)
	require.Equal(t, []string{"台北", "高雄", "花蓮"}, got, "first-seen order, no blanks")

	assert.Empty(t, DistinctLocations(nil))
}
