package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/reminder"
)

const defaultFetchTimeout = 15 * time.Second

// ReminderOptions リマインドの抽出・整形設定
type ReminderOptions struct {
	Marker         string
	ScheduleMarker string
	DayPolicy      reminder.DayPolicy
	DetailPolicy   reminder.DayPolicy
	DefaultOffset  int
	FetchTimeout   time.Duration
	Location       *time.Location
}

func (o ReminderOptions) withDefaults() ReminderOptions {
	if o.Marker == "" {
		o.Marker = "REMINDER"
	}
	if o.DayPolicy == "" {
		o.DayPolicy = reminder.PolicyExactDay
	}
	if o.DetailPolicy == "" {
		o.DetailPolicy = reminder.PolicyWindow
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = defaultFetchTimeout
	}
	if o.Location == nil {
		o.Location = reminder.JST
	}
	return o
}

// DispatchResult 1回のリマインド送信の結果
type DispatchResult struct {
	RunID     string
	TargetDay time.Time
	Matched   int
	Fields    int
	Channels  []string
	Skipped   bool
}

// ReminderDispatcher 対象日の予定を抽出して購読チャンネルへ送るユースケース
type ReminderDispatcher struct {
	calendarRepo  CalendarRepository
	subscriptions SubscriptionRepository
	schedules     ScheduleRepository
	notifier      Notifier
	observer      DispatchObserver
	logger        *zap.Logger
	opts          ReminderOptions
	renderer      reminder.Renderer

	clock    func() time.Time
	color    func() string
	newRunID func() string
}

// NewReminderDispatcher ユースケースを生成
func NewReminderDispatcher(
	calendarRepo CalendarRepository,
	subscriptions SubscriptionRepository,
	schedules ScheduleRepository,
	notifier Notifier,
	logger *zap.Logger,
	opts ReminderOptions,
) *ReminderDispatcher {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderDispatcher{
		calendarRepo:  calendarRepo,
		subscriptions: subscriptions,
		schedules:     schedules,
		notifier:      notifier,
		logger:        logger,
		opts:          opts,
		renderer: reminder.Renderer{
			Marker:         opts.Marker,
			ScheduleMarker: opts.ScheduleMarker,
			DetailPolicy:   opts.DetailPolicy,
			Location:       opts.Location,
		},
		clock:    time.Now,
		color:    reminder.RandomColor,
		newRunID: uuid.NewString,
	}
}

// WithObserver 送信結果の記録先を設定
func (d *ReminderDispatcher) WithObserver(observer DispatchObserver) *ReminderDispatcher {
	d.observer = observer
	return d
}

// RunScheduled 定期実行用。既定のオフセットで送信し、失敗はログに残すだけで呼び出し元へ返さない
func (d *ReminderDispatcher) RunScheduled(ctx context.Context) {
	result, err := d.Dispatch(ctx, d.opts.DefaultOffset)
	if err != nil {
		d.logger.Error("定期リマインドに失敗しました", zap.String("run_id", result.RunID), zap.Error(err))
	}
}

// Dispatch 今日から offset 日後の予定をリマインドする
func (d *ReminderDispatcher) Dispatch(ctx context.Context, offset int) (DispatchResult, error) {
	result := DispatchResult{RunID: d.newRunID()}
	log := d.logger.With(zap.String("run_id", result.RunID), zap.Int("offset", offset))

	targetDay := reminder.TargetDay(d.clock(), offset, d.opts.Location)
	result.TargetDay = targetDay

	events, err := d.fetchEvents(ctx, targetDay)
	if err != nil {
		log.Error("予定の取得に失敗しました", zap.Error(err))
		d.observe("failed", 0)
		return result, err
	}

	matched := reminder.FilterByDay(events, targetDay, d.opts.DayPolicy, d.opts.Location)
	matched = reminder.FilterByMarker(matched, d.opts.Marker)
	result.Matched = len(matched)

	fields := d.renderer.RenderAll(matched, targetDay, d.loadSchedule(ctx, log))
	result.Fields = len(fields)

	// 該当する予定が無ければ何も送らない
	if len(fields) == 0 {
		result.Skipped = true
		log.Info("リマインド対象の予定がないため送信をスキップしました",
			zap.Time("target_day", targetDay), zap.Int("fetched", len(events)))
		d.observe("empty", 0)
		return result, nil
	}

	subscriptions, err := d.subscriptions.LoadSubscriptions(ctx)
	if err != nil {
		log.Error("購読チャンネルの読み込みに失敗しました", zap.Error(err))
		d.observe("failed", 0)
		return result, fmt.Errorf("購読チャンネルの読み込みに失敗しました: %w", err)
	}

	message := reminder.BuildMessage(fields, d.color())

	var sendErrs []error
	for _, channelID := range SubscribedChannels(subscriptions) {
		if err := d.notifier.SendReminder(ctx, channelID, message); err != nil {
			log.Error("リマインドの送信に失敗しました", zap.String("channel", channelID), zap.Error(err))
			sendErrs = append(sendErrs, fmt.Errorf("%s: %w", channelID, err))
			continue
		}
		result.Channels = append(result.Channels, channelID)
	}

	if len(sendErrs) > 0 {
		d.observe("failed", len(result.Channels))
		return result, fmt.Errorf("%w: %w", domain.ErrDispatchFailure, errors.Join(sendErrs...))
	}

	log.Info("リマインドを送信しました",
		zap.Time("target_day", targetDay),
		zap.Int("events", result.Matched),
		zap.Strings("channels", result.Channels))
	d.observe("sent", len(result.Channels))
	return result, nil
}

// fetchEvents タイムアウト付きで予定を取得し、失敗は ErrSourceUnavailable として返す
func (d *ReminderDispatcher) fetchEvents(ctx context.Context, targetDay time.Time) ([]domain.Event, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, d.opts.FetchTimeout)
	defer cancel()

	events, err := d.calendarRepo.GetEvents(fetchCtx, targetDay)
	if err != nil {
		if errors.Is(err, domain.ErrSourceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	return events, nil
}

// loadSchedule スケジュールが読めなくてもリマインドは続行する
func (d *ReminderDispatcher) loadSchedule(ctx context.Context, log *zap.Logger) []domain.ScheduleEntry {
	if d.schedules == nil {
		return nil
	}
	entries, err := d.schedules.LoadSchedule(ctx)
	if err != nil {
		log.Warn("輪講スケジュールの読み込みに失敗しました", zap.Error(err))
		return nil
	}
	return entries
}

func (d *ReminderDispatcher) observe(status string, sent int) {
	if d.observer != nil {
		d.observer.ObserveDispatch(status, sent)
	}
}

// SubscribedChannels フラグが true のチャンネルIDを昇順で返す
func SubscribedChannels(subscriptions map[string]bool) []string {
	channels := make([]string, 0, len(subscriptions))
	for channelID, enabled := range subscriptions {
		if enabled {
			channels = append(channels, channelID)
		}
	}
	sort.Strings(channels)
	return channels
}
