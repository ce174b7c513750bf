package usecase

import (
	"context"
	"time"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// CalendarRepository カレンダーからイベントを取得するポート
type CalendarRepository interface {
	GetEvents(ctx context.Context, targetDate time.Time) ([]domain.Event, error)
}

// SheetRepository スプレッドシートの行を取得するポート
type SheetRepository interface {
	GetScheduleRows(ctx context.Context) ([][]string, error)
}

// SubscriptionRepository リマインド購読チャンネル（チャンネルID→購読フラグ）の永続化ポート
type SubscriptionRepository interface {
	LoadSubscriptions(ctx context.Context) (map[string]bool, error)
	SaveSubscriptions(ctx context.Context, subscriptions map[string]bool) error
}

// ScheduleRepository 輪講スケジュールのスナップショットの永続化ポート
type ScheduleRepository interface {
	LoadSchedule(ctx context.Context) ([]domain.ScheduleEntry, error)
	SaveSchedule(ctx context.Context, entries []domain.ScheduleEntry) error
}

// Notifier チャットへの送信ポート
type Notifier interface {
	SendReminder(ctx context.Context, channelID string, message domain.ReminderMessage) error
	UploadFile(ctx context.Context, channelID string, file domain.ScheduleFile) error
}

// DispatchObserver リマインド送信結果の記録先
type DispatchObserver interface {
	ObserveDispatch(status string, sent int)
}

// ScheduleObserver スケジュール確認結果の記録先
type ScheduleObserver interface {
	ObserveScheduleCheck(status string)
}
