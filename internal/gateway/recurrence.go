package gateway

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const defaultMaxOccurrences = 500

// rawEvent 展開前の VEVENT。iCalフィードとCalDAVで共通
type rawEvent struct {
	UID          string
	Summary      string
	Description  string
	Location     string
	Start        time.Time
	End          time.Time
	AllDay       bool
	RRule        string
	ExDates      []time.Time
	RecurrenceID *time.Time
}

// expansion 展開結果。上限に達したUIDは Truncated に入る
type expansion struct {
	Events    []domain.Event
	Truncated []string
}

// expandOccurrences [rangeStart, rangeEnd) に重なる発生を展開する。
// RECURRENCE-ID を持つ VEVENT は同じUIDの該当回を置き換える。
func expandOccurrences(events []rawEvent, rangeStart, rangeEnd time.Time, loc *time.Location, maxPerEvent int) (expansion, error) {
	var out expansion
	if rangeEnd.Before(rangeStart) {
		return out, fmt.Errorf("展開範囲が不正です: %s - %s", rangeStart, rangeEnd)
	}
	if maxPerEvent <= 0 {
		maxPerEvent = defaultMaxOccurrences
	}

	overrides := make(map[string][]rawEvent)
	var bases []rawEvent
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
			continue
		}
		bases = append(bases, ev)
	}

	for _, ev := range bases {
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, rangeStart, rangeEnd) {
				out.Events = append(out.Events, toDomainEvent(ev, ev.Start, ev.End, loc, false))
			}
			continue
		}

		occ, hitCap, err := expandRecurring(ev, overrides[ev.UID], rangeStart, rangeEnd, loc, maxPerEvent)
		if err != nil {
			return out, err
		}
		if hitCap {
			out.Truncated = append(out.Truncated, ev.UID)
		}
		out.Events = append(out.Events, occ...)
	}

	// 親が範囲外に移った回でも、置き換え先が範囲内なら拾う
	for _, ovs := range overrides {
		for _, ov := range ovs {
			if overlaps(ov.Start, ov.End, rangeStart, rangeEnd) && !containsOccurrence(out.Events, ov) {
				out.Events = append(out.Events, toDomainEvent(ov, ov.Start, ov.End, loc, true))
			}
		}
	}

	// 開始時刻順。同時刻はIDで並べる
	sort.SliceStable(out.Events, func(i, j int) bool {
		a, b := out.Events[i], out.Events[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func expandRecurring(ev rawEvent, overrides []rawEvent, rangeStart, rangeEnd time.Time, loc *time.Location, maxPerEvent int) ([]domain.Event, bool, error) {
	rule, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, false, fmt.Errorf("RRULEの解析に失敗しました (%s): %w", ev.UID, err)
	}
	rule.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	dur := ev.End.Sub(ev.Start)
	starts := set.Between(rangeStart.Add(-dur).In(ev.Start.Location()), rangeEnd.In(ev.Start.Location()), true)

	hitCap := false
	if len(starts) > maxPerEvent {
		starts = starts[:maxPerEvent]
		hitCap = true
	}

	out := make([]domain.Event, 0, len(starts))
	for _, occStart := range starts {
		occEnd := occStart.Add(dur)
		// 置き換えられた回は expandOccurrences 側で拾う
		if isOverridden(overrides, occStart) {
			continue
		}
		if !overlaps(occStart, occEnd, rangeStart, rangeEnd) {
			continue
		}
		out = append(out, toDomainEvent(ev, occStart, occEnd, loc, true))
	}
	return out, hitCap, nil
}

func isOverridden(overrides []rawEvent, occStart time.Time) bool {
	for _, ov := range overrides {
		if ov.RecurrenceID.Equal(occStart) {
			return true
		}
	}
	return false
}

func containsOccurrence(events []domain.Event, ev rawEvent) bool {
	id := occurrenceID(ev.UID, *ev.RecurrenceID)
	for _, e := range events {
		if e.ID == id {
			return true
		}
	}
	return false
}

// overlaps [start, end) が [rangeStart, rangeEnd) と重なるか。長さ0の予定は開始時刻で判定する
func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	if !start.Before(rangeEnd) {
		return false
	}
	if end.Equal(start) {
		return !start.Before(rangeStart)
	}
	return end.After(rangeStart)
}

func occurrenceID(uid string, start time.Time) string {
	return uid + "@" + start.UTC().Format("20060102T150405Z")
}

func toDomainEvent(ev rawEvent, start, end time.Time, loc *time.Location, recurring bool) domain.Event {
	id := ev.UID
	switch {
	case ev.RecurrenceID != nil:
		id = occurrenceID(ev.UID, *ev.RecurrenceID)
	case recurring:
		id = occurrenceID(ev.UID, start)
	}
	return domain.Event{
		ID:          id,
		Title:       ev.Summary,
		StartTime:   start.In(loc),
		EndTime:     end.In(loc),
		IsAllDay:    ev.AllDay,
		Location:    ev.Location,
		Description: ev.Description,
	}
}
