// Package app は設定から各ユースケースとアダプタを組み立てる。
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/config"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/gateway"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/metrics"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/reminder"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/usecase"
)

// App 組み立て済みのユースケース一式
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Recorder
	Location   *time.Location
	Dispatcher *usecase.ReminderDispatcher
	Commands   *usecase.CommandHandler
	// Watcher SPREADSHEET_ID 未設定なら nil
	Watcher *usecase.ScheduleWatcher

	closers []func() error
}

// New 設定に従ってアダプタを選び、ユースケースを組み立てる
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics.NewRecorder(),
		Location: cfg.Location(),
	}

	dayPolicy, err := reminder.ParseDayPolicy(cfg.Reminder.DayPolicy)
	if err != nil {
		return nil, fmt.Errorf("REMINDER_DAY_POLICY: %w", err)
	}
	detailPolicy, err := reminder.ParseDayPolicy(cfg.Reminder.DetailPolicy)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_DETAIL_POLICY: %w", err)
	}

	calendarRepo, err := a.newCalendarRepository(ctx)
	if err != nil {
		return nil, err
	}

	brain, err := a.newBrain(ctx)
	if err != nil {
		return nil, err
	}
	store := gateway.NewBrainRepository(brain)

	notifier, err := a.newNotifier()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dispatcher = usecase.NewReminderDispatcher(calendarRepo, store, store, notifier, logger, usecase.ReminderOptions{
		Marker:         cfg.Reminder.Marker,
		ScheduleMarker: cfg.Reminder.ScheduleMarker,
		DayPolicy:      dayPolicy,
		DetailPolicy:   detailPolicy,
		DefaultOffset:  cfg.Reminder.DefaultOffset,
		FetchTimeout:   cfg.Calendar.FetchTimeout,
		Location:       a.Location,
	}).WithObserver(a.Metrics)
	a.Commands = usecase.NewCommandHandler(a.Dispatcher, store, logger)

	if cfg.Sheet.SpreadsheetID != "" {
		sheets, err := a.newSheetRepository(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Watcher = usecase.NewScheduleWatcher(sheets, store, store, notifier, logger, a.Location).
			WithObserver(a.Metrics)
	}

	return a, nil
}

// Close 開いた接続を閉じる
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) googleCredentials() ([]byte, error) {
	return a.Config.GoogleCredentialsJSON()
}

func (a *App) newCalendarRepository(ctx context.Context) (usecase.CalendarRepository, error) {
	cfg := a.Config
	switch cfg.Calendar.Source {
	case config.SourceICal:
		return gateway.NewICalFeedRepository(cfg.Calendar.ICalFeedURL, nil, a.Location, a.Logger), nil
	case config.SourceCalDAV:
		return gateway.NewCalDAVRepository(cfg.Calendar.CalDAVURL, cfg.Calendar.CalDAVUsername,
			cfg.Calendar.CalDAVPassword, cfg.Calendar.CalDAVPath, a.Location, a.Logger)
	case config.SourceGoogle:
		creds, err := a.googleCredentials()
		if err != nil {
			return nil, err
		}
		repo, err := gateway.NewGoogleCalendarRepository(ctx, creds, cfg.Calendar.ID, cfg.Calendar.MaxResults, a.Location)
		if err != nil {
			return nil, err
		}
		return repo.WithLogger(a.Logger), nil
	default:
		return nil, fmt.Errorf("未知のCALENDAR_SOURCEです: %q", cfg.Calendar.Source)
	}
}

func (a *App) newSheetRepository(ctx context.Context) (usecase.SheetRepository, error) {
	creds, err := a.googleCredentials()
	if err != nil {
		return nil, err
	}
	return gateway.NewGoogleSheetsRepository(ctx, creds, a.Config.Sheet.SpreadsheetID, a.Config.Sheet.Range)
}

func (a *App) newNotifier() (usecase.Notifier, error) {
	cfg := a.Config.Notifier
	switch cfg.Kind {
	case config.NotifierLINE:
		return gateway.NewLINENotifier(cfg.LineChannelAccessToken, cfg.LineEndpoint), nil
	case config.NotifierSlack, "":
		return gateway.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackAPIURL, a.Logger), nil
	default:
		return nil, fmt.Errorf("未知のNOTIFIERです: %q", cfg.Kind)
	}
}

func (a *App) newBrain(ctx context.Context) (gateway.Brain, error) {
	cfg := a.Config.Brain
	switch cfg.Backend {
	case config.BrainSSM:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
		}
		return gateway.NewSSMBrain(ssm.NewFromConfig(awsCfg), cfg.ParamPrefix), nil
	case config.BrainRedis:
		client, err := gateway.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("Redisへの接続に失敗しました: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return gateway.NewRedisBrain(client, "reminder:"), nil
	case config.BrainSQLite:
		brain, err := gateway.OpenSQLiteBrain(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, brain.Close)
		return brain, nil
	case config.BrainMemory, "":
		a.Logger.Warn("BRAIN_BACKEND が memory のため購読チャンネルは再起動で失われます")
		return gateway.NewMemoryBrain(), nil
	default:
		return nil, fmt.Errorf("未知のBRAIN_BACKENDです: %q", cfg.Backend)
	}
}
