package reminder

import (
	"strings"
	"time"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// FilterByDay 開始日時が targetDay に該当するイベントだけを残す（順序は保持）
func FilterByDay(events []domain.Event, targetDay time.Time, policy DayPolicy, loc *time.Location) []domain.Event {
	filtered := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if policy.Match(ev.StartTime, targetDay, loc) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}

// FilterByMarker 説明文に marker を含むイベントだけを残す
func FilterByMarker(events []domain.Event, marker string) []domain.Event {
	filtered := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if strings.Contains(ev.Description, marker) {
			filtered = append(filtered, ev)
		}
	}
	return filtered
}
