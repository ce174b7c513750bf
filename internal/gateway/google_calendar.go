package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const defaultMaxResults = 10

var errMissingTime = errors.New("時刻が設定されていません")

// EventsProvider Google Calendar APIのイベント一覧取得を抽象化（テストで差し替え可能）
type EventsProvider interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error)
}

// serviceEventsProvider calendar.Service を使った EventsProvider
type serviceEventsProvider struct {
	service    *calendar.Service
	maxResults int64
}

func (p *serviceEventsProvider) ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	events, err := p.service.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(p.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return events.Items, nil
}

// GoogleCalendarRepository Google Calendar APIを使用したCalendarRepositoryの実装
type GoogleCalendarRepository struct {
	provider   EventsProvider
	calendarID string
	timezone   *time.Location
	logger     *zap.Logger
}

// NewGoogleCalendarRepository サービスアカウントの認証情報からGoogle Calendarリポジトリを作成
func NewGoogleCalendarRepository(ctx context.Context, credentialsJSON []byte, calendarID string, maxResults int64, loc *time.Location, opts ...option.ClientOption) (*GoogleCalendarRepository, error) {
	if len(credentialsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("google認証情報の読み込みに失敗しました: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google Calendar APIサービスの作成に失敗しました: %w", err)
	}

	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	provider := &serviceEventsProvider{service: service, maxResults: maxResults}
	return NewGoogleCalendarRepositoryWithProvider(provider, calendarID, loc), nil
}

// NewGoogleCalendarRepositoryWithProvider 任意の EventsProvider でリポジトリを作成
func NewGoogleCalendarRepositoryWithProvider(provider EventsProvider, calendarID string, loc *time.Location) *GoogleCalendarRepository {
	return &GoogleCalendarRepository{
		provider:   provider,
		calendarID: calendarID,
		timezone:   loc,
		logger:     zap.NewNop(),
	}
}

// WithLogger ロガーを設定
func (r *GoogleCalendarRepository) WithLogger(logger *zap.Logger) *GoogleCalendarRepository {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// GetEvents 指定された日の予定を取得
func (r *GoogleCalendarRepository) GetEvents(ctx context.Context, targetDate time.Time) ([]domain.Event, error) {
	start, end := dayRange(targetDate, r.timezone)

	items, err := r.provider.ListEvents(ctx, r.calendarID, start.Format(time.RFC3339), end.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("%w: カレンダーイベントの取得に失敗しました: %w", domain.ErrSourceUnavailable, err)
	}

	domainEvents := make([]domain.Event, 0, len(items))
	for _, item := range items {
		ev, err := r.convertToEvent(item)
		if err != nil {
			r.logger.Warn("イベントの変換をスキップしました", zap.String("event_id", item.Id), zap.Error(err))
			continue
		}
		domainEvents = append(domainEvents, ev)
	}
	return domainEvents, nil
}

// convertToEvent Google Calendar APIのイベントをドメインエンティティに変換
func (r *GoogleCalendarRepository) convertToEvent(event *calendar.Event) (domain.Event, error) {
	if event.Start == nil || event.End == nil {
		return domain.Event{}, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, errMissingTime)
	}

	ev := domain.Event{
		ID:          event.Id,
		Title:       event.Summary,
		Location:    event.Location,
		Description: event.Description,
		IsAllDay:    event.Start.DateTime == "" && event.Start.Date != "",
	}

	var err error
	if ev.StartTime, err = r.parseEventTime(event.Start); err != nil {
		return domain.Event{}, fmt.Errorf("%w: 開始時刻の解析に失敗しました: %w", domain.ErrInvalidEvent, err)
	}
	if ev.EndTime, err = r.parseEventTime(event.End); err != nil {
		return domain.Event{}, fmt.Errorf("%w: 終了時刻の解析に失敗しました: %w", domain.ErrInvalidEvent, err)
	}

	if err := validateEvent(ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

// parseEventTime 時刻指定ありは RFC3339、終日は日付を設定タイムゾーンの0時として読む
func (r *GoogleCalendarRepository) parseEventTime(t *calendar.EventDateTime) (time.Time, error) {
	switch {
	case t.DateTime != "":
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.In(r.timezone), nil
	case t.Date != "":
		return time.ParseInLocation("2006-01-02", t.Date, r.timezone)
	default:
		return time.Time{}, errMissingTime
	}
}
