package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const testFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//feed//JA
BEGIN:VEVENT
UID:single-1
DTSTAMP:20240101T000000Z
SUMMARY:歓迎会
LOCATION:生協食堂
DESCRIPTION:REMINDER{会費 3000円}
DTSTART;TZID=Asia/Tokyo:20240116T183000
DTEND;TZID=Asia/Tokyo:20240116T203000
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20240101T000000Z
SUMMARY:輪講
DESCRIPTION:REMINDER{}
DTSTART:20240102T040000Z
DTEND:20240102T060000Z
RRULE:FREQ=WEEKLY;BYDAY=TU
EXDATE:20240109T040000Z
END:VEVENT
BEGIN:VEVENT
UID:weekly-1
DTSTAMP:20240101T000000Z
RECURRENCE-ID:20240123T040000Z
SUMMARY:輪講（延期）
DESCRIPTION:REMINDER{}
DTSTART:20240124T040000Z
DTEND:20240124T060000Z
END:VEVENT
BEGIN:VEVENT
UID:allday-1
DTSTAMP:20240101T000000Z
SUMMARY:大掃除
DTSTART;VALUE=DATE:20240116
DTEND;VALUE=DATE:20240117
END:VEVENT
BEGIN:VEVENT
UID:untitled-1
DTSTAMP:20240101T000000Z
DTSTART:20240116T010000Z
DTEND:20240116T020000Z
END:VEVENT
END:VCALENDAR
`

func icsBody() string {
	return strings.ReplaceAll(testFeed, "\n", "\r\n")
}

func newFeedServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(icsBody()))
	}))
}

func titles(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Title)
	}
	return out
}

func TestICalFeedRepository_GetEvents(t *testing.T) {
	var hits int32
	server := newFeedServer(t, &hits)
	defer server.Close()

	repo := NewICalFeedRepository(server.URL, server.Client(), jst, nil)

	events, err := repo.GetEvents(context.Background(), time.Date(2024, 1, 16, 0, 0, 0, 0, jst))
	require.NoError(t, err)

	// 無題のイベントは検証で落ちる
	assert.Equal(t, []string{"大掃除", "輪講", "歓迎会"}, titles(events))

	for _, ev := range events {
		switch ev.Title {
		case "歓迎会":
			assert.Equal(t, 18, ev.StartTime.Hour())
			assert.Equal(t, "生協食堂", ev.Location)
			assert.Equal(t, "REMINDER{会費 3000円}", ev.Description)
		case "輪講":
			assert.Equal(t, time.Date(2024, 1, 16, 13, 0, 0, 0, jst), ev.StartTime)
			assert.Equal(t, 2*time.Hour, ev.Duration())
			assert.Equal(t, "weekly-1@20240116T040000Z", ev.ID)
		case "大掃除":
			assert.True(t, ev.IsAllDay)
			assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, jst), ev.StartTime)
		}
	}
}

func TestICalFeedRepository_ExDateAndOverride(t *testing.T) {
	var hits int32
	server := newFeedServer(t, &hits)
	defer server.Close()

	repo := NewICalFeedRepository(server.URL, server.Client(), jst, nil)
	ctx := context.Background()

	excluded, err := repo.GetEvents(ctx, time.Date(2024, 1, 9, 0, 0, 0, 0, jst))
	require.NoError(t, err)
	assert.Empty(t, excluded)

	// 1/23 の回は 1/24 に移動している
	moved, err := repo.GetEvents(ctx, time.Date(2024, 1, 23, 0, 0, 0, 0, jst))
	require.NoError(t, err)
	assert.Empty(t, moved)

	postponed, err := repo.GetEvents(ctx, time.Date(2024, 1, 24, 0, 0, 0, 0, jst))
	require.NoError(t, err)
	require.Len(t, postponed, 1)
	assert.Equal(t, "輪講（延期）", postponed[0].Title)
	assert.Equal(t, "weekly-1@20240123T040000Z", postponed[0].ID)
}

func TestICalFeedRepository_UsesCacheOnNotModified(t *testing.T) {
	var hits int32
	server := newFeedServer(t, &hits)
	defer server.Close()

	repo := NewICalFeedRepository(server.URL, server.Client(), jst, nil)
	ctx := context.Background()
	target := time.Date(2024, 1, 16, 0, 0, 0, 0, jst)

	first, err := repo.GetEvents(ctx, target)
	require.NoError(t, err)
	second, err := repo.GetEvents(ctx, target)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.ElementsMatch(t, titles(first), titles(second))
}

func TestICalFeedRepository_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	repo := NewICalFeedRepository(server.URL, server.Client(), jst, nil)

	_, err := repo.GetEvents(context.Background(), time.Date(2024, 1, 16, 0, 0, 0, 0, jst))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "iCalフィードの取得に失敗しました")
}

func TestICSTime(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		params     map[string][]string
		want       time.Time
		wantAllDay bool
	}{
		{
			name:       "日付のみ",
			value:      "20240116",
			params:     map[string][]string{"VALUE": {"DATE"}},
			want:       time.Date(2024, 1, 16, 0, 0, 0, 0, jst),
			wantAllDay: true,
		},
		{
			name:  "UTC",
			value: "20240116T040000Z",
			want:  time.Date(2024, 1, 16, 13, 0, 0, 0, jst),
		},
		{
			name:  "floating",
			value: "20240116T130000",
			want:  time.Date(2024, 1, 16, 13, 0, 0, 0, jst),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, allDay, err := icsTime(tt.value, tt.params, jst)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, tt.wantAllDay, allDay)
		})
	}
}
