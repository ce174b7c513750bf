package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/reminder"
)

const (
	scheduleDiffName   = "Research Paper Schedule"
	scheduleFileTitle  = "輪講スケジュールが更新されたよ〜"
	scheduleFileName   = "schedule.diff"
	scheduleDateLayout = "2006/1/2"
	emptyScheduleName  = "-"
)

// ScheduleCheckResult スケジュール確認の結果
type ScheduleCheckResult struct {
	Changed  bool
	Entries  int
	Diff     string
	Channels []string
}

// ScheduleWatcher スプレッドシートの輪講スケジュールの変更を検知して通知するユースケース
type ScheduleWatcher struct {
	sheets        SheetRepository
	schedules     ScheduleRepository
	subscriptions SubscriptionRepository
	notifier      Notifier
	observer      ScheduleObserver
	logger        *zap.Logger
	location      *time.Location
	clock         func() time.Time
}

// NewScheduleWatcher ユースケースを生成
func NewScheduleWatcher(
	sheets SheetRepository,
	schedules ScheduleRepository,
	subscriptions SubscriptionRepository,
	notifier Notifier,
	logger *zap.Logger,
	location *time.Location,
) *ScheduleWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = reminder.JST
	}
	return &ScheduleWatcher{
		sheets:        sheets,
		schedules:     schedules,
		subscriptions: subscriptions,
		notifier:      notifier,
		logger:        logger,
		location:      location,
		clock:         time.Now,
	}
}

// WithObserver 確認結果の記録先を設定
func (w *ScheduleWatcher) WithObserver(observer ScheduleObserver) *ScheduleWatcher {
	w.observer = observer
	return w
}

// RunScheduled 定期実行用。失敗はログに残すだけ
func (w *ScheduleWatcher) RunScheduled(ctx context.Context) {
	if _, err := w.Check(ctx); err != nil {
		w.logger.Error("スケジュールの確認に失敗しました", zap.Error(err))
	}
}

// Check スプレッドシートを読み、保存済みスナップショットと差分があれば通知して保存する
func (w *ScheduleWatcher) Check(ctx context.Context) (ScheduleCheckResult, error) {
	var result ScheduleCheckResult
	now := w.clock()

	rows, err := w.sheets.GetScheduleRows(ctx)
	if err != nil {
		w.observe("failed")
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		return result, err
	}
	latest := FilterUpcoming(ParseScheduleRows(rows, w.location), now)
	result.Entries = len(latest)

	previous, err := w.schedules.LoadSchedule(ctx)
	if err != nil {
		w.observe("failed")
		return result, fmt.Errorf("保存済みスケジュールの読み込みに失敗しました: %w", err)
	}
	previous = FilterUpcoming(previous, now)

	oldText := FormatSchedule(previous, w.location)
	newText := FormatSchedule(latest, w.location)
	if oldText == newText {
		w.logger.Debug("スケジュールに変更はありません", zap.Int("entries", len(latest)))
		w.observe("unchanged")
		return result, nil
	}

	result.Changed = true
	result.Diff, err = BuildScheduleDiff(oldText, newText)
	if err != nil {
		w.observe("failed")
		return result, fmt.Errorf("差分の作成に失敗しました: %w", err)
	}

	subscriptions, err := w.subscriptions.LoadSubscriptions(ctx)
	if err != nil {
		w.observe("failed")
		return result, fmt.Errorf("購読チャンネルの読み込みに失敗しました: %w", err)
	}

	file := domain.ScheduleFile{
		Title:    scheduleFileTitle,
		Filename: scheduleFileName,
		Content:  result.Diff,
		FileType: "diff",
	}

	var uploadErrs []error
	for _, channelID := range SubscribedChannels(subscriptions) {
		if err := w.notifier.UploadFile(ctx, channelID, file); err != nil {
			w.logger.Error("差分ファイルのアップロードに失敗しました", zap.String("channel", channelID), zap.Error(err))
			uploadErrs = append(uploadErrs, fmt.Errorf("%s: %w", channelID, err))
			continue
		}
		result.Channels = append(result.Channels, channelID)
	}

	if err := w.schedules.SaveSchedule(ctx, latest); err != nil {
		w.observe("failed")
		return result, fmt.Errorf("スケジュールの保存に失敗しました: %w", err)
	}

	if len(uploadErrs) > 0 {
		w.observe("failed")
		return result, fmt.Errorf("%w: %w", domain.ErrDispatchFailure, errors.Join(uploadErrs...))
	}

	w.logger.Info("スケジュールの更新を通知しました",
		zap.Int("entries", len(latest)), zap.Strings("channels", result.Channels))
	w.observe("changed")
	return result, nil
}

func (w *ScheduleWatcher) observe(status string) {
	if w.observer != nil {
		w.observer.ObserveScheduleCheck(status)
	}
}

// ParseScheduleRows シートの行 [日付, -, -, 担当者] をスケジュールに変換する。
// 担当者が空か "-" の行、日付が読めない行は捨てる。
func ParseScheduleRows(rows [][]string, loc *time.Location) []domain.ScheduleEntry {
	entries := make([]domain.ScheduleEntry, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		name := strings.TrimSpace(row[3])
		if name == "" || name == emptyScheduleName {
			continue
		}

		date := strings.TrimSpace(strings.SplitN(row[0], "(", 2)[0])
		day, err := time.ParseInLocation(scheduleDateLayout, date, loc)
		if err != nil {
			continue
		}
		entries = append(entries, domain.ScheduleEntry{Name: name, Day: day})
	}
	return entries
}

// FilterUpcoming now より後の日付のものだけを残す
func FilterUpcoming(entries []domain.ScheduleEntry, now time.Time) []domain.ScheduleEntry {
	upcoming := make([]domain.ScheduleEntry, 0, len(entries))
	for _, entry := range entries {
		if now.Before(entry.Day) {
			upcoming = append(upcoming, entry)
		}
	}
	return upcoming
}

// FormatSchedule "MM/DD 担当者" を1行ずつ並べる
func FormatSchedule(entries []domain.ScheduleEntry, loc *time.Location) string {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry.Day.In(loc).Format("01/02") + " " + entry.Name + "\n")
	}
	return b.String()
}

// BuildScheduleDiff 新旧スケジュールの unified diff を作る
func BuildScheduleDiff(oldText, newText string) (string, error) {
	body, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: scheduleDiffName,
		FromDate: "old",
		ToFile:   scheduleDiffName,
		ToDate:   "new",
		Context:  4,
	})
	if err != nil {
		return "", err
	}
	header := "Index: " + scheduleDiffName + "\n" + strings.Repeat("=", 67) + "\n"
	return header + body, nil
}
