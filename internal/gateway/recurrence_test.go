package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandOccurrences_PreservesDuration(t *testing.T) {
	events := []rawEvent{{
		UID:     "daily",
		Summary: "朝会",
		Start:   time.Date(2024, 1, 1, 9, 0, 0, 0, jst),
		End:     time.Date(2024, 1, 1, 9, 45, 0, 0, jst),
		RRule:   "FREQ=DAILY",
	}}

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, jst)
	got, err := expandOccurrences(events, start, start.AddDate(0, 0, 1), jst, 0)
	require.NoError(t, err)

	require.Len(t, got.Events, 1)
	assert.Equal(t, time.Date(2024, 1, 10, 9, 0, 0, 0, jst), got.Events[0].StartTime)
	assert.Equal(t, 45*time.Minute, got.Events[0].Duration())
}

func TestExpandOccurrences_Cap(t *testing.T) {
	events := []rawEvent{{
		UID:   "hourly",
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, jst),
		End:   time.Date(2024, 1, 1, 0, 30, 0, 0, jst),
		RRule: "FREQ=HOURLY",
	}}

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, jst)
	got, err := expandOccurrences(events, start, start.AddDate(0, 0, 1), jst, 5)
	require.NoError(t, err)

	assert.Len(t, got.Events, 5)
	assert.Equal(t, []string{"hourly"}, got.Truncated)
}

func TestExpandOccurrences_InvalidRule(t *testing.T) {
	events := []rawEvent{{
		UID:   "broken",
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, jst),
		End:   time.Date(2024, 1, 1, 1, 0, 0, 0, jst),
		RRule: "FREQ=SOMETIMES",
	}}

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, jst)
	_, err := expandOccurrences(events, start, start.AddDate(0, 0, 1), jst, 0)
	assert.Error(t, err)
}

func TestOverlaps(t *testing.T) {
	day := time.Date(2024, 1, 16, 0, 0, 0, 0, jst)
	next := day.AddDate(0, 0, 1)

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"範囲内", day.Add(time.Hour), day.Add(2 * time.Hour), true},
		{"前日から跨ぐ", day.Add(-time.Hour), day.Add(time.Hour), true},
		{"前日に終わる", day.Add(-2 * time.Hour), day, false},
		{"翌日0時開始", next, next.Add(time.Hour), false},
		{"長さ0", day, day, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlaps(tt.start, tt.end, day, next))
		})
	}
}

func TestExpandOccurrences_MovedOverridesStableOrder(t *testing.T) {
	var events []rawEvent
	for _, uid := range []string{"f", "c", "a", "e", "b", "d"} {
		original := time.Date(2024, 1, 8, 10, 0, 0, 0, jst)
		events = append(events,
			rawEvent{
				UID:     uid,
				Summary: uid + "-weekly",
				Start:   time.Date(2024, 1, 1, 10, 0, 0, 0, jst),
				End:     time.Date(2024, 1, 1, 11, 0, 0, 0, jst),
				RRule:   "FREQ=WEEKLY",
			},
			rawEvent{
				UID:          uid,
				Summary:      uid + "-moved",
				Start:        time.Date(2024, 1, 10, 13, 0, 0, 0, jst),
				End:          time.Date(2024, 1, 10, 14, 0, 0, 0, jst),
				RecurrenceID: &original,
			},
		)
	}

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, jst)
	want := []string{"a-moved", "b-moved", "c-moved", "d-moved", "e-moved", "f-moved"}
	for i := 0; i < 20; i++ {
		got, err := expandOccurrences(events, start, start.AddDate(0, 0, 1), jst, 0)
		require.NoError(t, err)
		assert.Equal(t, want, titles(got.Events))
	}
}

func TestExpandOccurrences_SortedByStart(t *testing.T) {
	events := []rawEvent{
		{UID: "late", Summary: "夕会", Start: time.Date(2024, 1, 10, 18, 0, 0, 0, jst), End: time.Date(2024, 1, 10, 18, 30, 0, 0, jst)},
		{UID: "daily", Summary: "朝会", Start: time.Date(2024, 1, 1, 9, 0, 0, 0, jst), End: time.Date(2024, 1, 1, 9, 15, 0, 0, jst), RRule: "FREQ=DAILY"},
		{UID: "noon", Summary: "昼会", Start: time.Date(2024, 1, 10, 12, 0, 0, 0, jst), End: time.Date(2024, 1, 10, 12, 30, 0, 0, jst)},
	}

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, jst)
	got, err := expandOccurrences(events, start, start.AddDate(0, 0, 1), jst, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"朝会", "昼会", "夕会"}, titles(got.Events))
}
