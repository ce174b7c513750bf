package domain

import "time"

// Event カレンダーイベントのドメインエンティティ（繰り返しは展開済みの1回分）
type Event struct {
	ID          string
	Title       string    `validate:"required"`
	StartTime   time.Time `validate:"required"`
	EndTime     time.Time `validate:"required,gtefield=StartTime"`
	IsAllDay    bool
	Location    string
	Description string
}

// Duration イベントの長さ
func (e Event) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}
