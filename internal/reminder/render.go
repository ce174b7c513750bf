package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const (
	// AllDayLabel 終日イベントの時刻表示
	AllDayLabel = "終日"
	// NoLocation 場所未設定時の表示
	NoLocation = "NONE"

	midnightRange = "24:00 - 24:00"
)

// Renderer イベントを表示用フィールドに変換する
type Renderer struct {
	Marker         string
	ScheduleMarker string
	DetailPolicy   DayPolicy
	Location       *time.Location
}

// Render 1件のイベントを Event, Time, Location, [スケジュール詳細], [注記] の順で変換する。
// schedule が nil の場合はスケジュール詳細を出さない。
func (r Renderer) Render(ev domain.Event, targetDay time.Time, schedule []domain.ScheduleEntry) []domain.ReminderField {
	fields := []domain.ReminderField{
		{Title: "Event", Value: ev.Title, Short: false},
		{Title: "Time", Value: FormatTimeRange(ev.StartTime, ev.EndTime, r.Location), Short: true},
		{Title: "Location", Value: locationOrNone(ev.Location), Short: true},
	}

	if r.ScheduleMarker != "" && schedule != nil && strings.Contains(ev.Description, r.ScheduleMarker) {
		fields = append(fields, domain.ReminderField{
			Title: "Detail",
			Value: r.scheduleDetail(targetDay, schedule),
			Short: false,
		})
	}

	if note, ok := ExtractAnnotation(ev.Description, r.Marker); ok {
		fields = append(fields, domain.ReminderField{Title: "Detail", Value: note, Short: false})
	}

	return fields
}

// RenderAll 複数イベントのフィールドをイベント順に連結する
func (r Renderer) RenderAll(events []domain.Event, targetDay time.Time, schedule []domain.ScheduleEntry) []domain.ReminderField {
	var fields []domain.ReminderField
	for _, ev := range events {
		fields = append(fields, r.Render(ev, targetDay, schedule)...)
	}
	return fields
}

func (r Renderer) scheduleDetail(targetDay time.Time, schedule []domain.ScheduleEntry) string {
	var b strings.Builder
	for _, entry := range schedule {
		if r.DetailPolicy.Match(entry.Day, targetDay, r.Location) {
			b.WriteString("@" + entry.Name + " ")
		}
	}
	return b.String()
}

// FormatTimeRange "HH:MM - HH:MM" 形式（0時は24時と表記）。
// 両端とも0時になる終日イベントは AllDayLabel を返す。
func FormatTimeRange(start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = JST
	}
	s := fmt.Sprintf("%s - %s", clock(start.In(loc)), clock(end.In(loc)))
	if s == midnightRange {
		return AllDayLabel
	}
	return s
}

func clock(t time.Time) string {
	h := t.Hour()
	if h == 0 {
		h = 24
	}
	return fmt.Sprintf("%02d:%02d", h, t.Minute())
}

func locationOrNone(loc string) string {
	if loc == "" {
		return NoLocation
	}
	return loc
}
