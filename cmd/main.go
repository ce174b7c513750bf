package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "time/tzdata"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/app"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/config"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/logger"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/usecase"
)

const (
	jobReminder = "reminder"
	jobSheet    = "sheet"
	jobCommand  = "command"
)

// LambdaEvent Lambda実行時のイベント構造体。
// EventBridge Scheduler からは job のみ、チャット連携からは command と channel_id が届く
type LambdaEvent struct {
	Job       string `json:"job"`
	Offset    *int   `json:"offset,omitempty"`
	Command   string `json:"command,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
}

// LambdaResponse Lambda実行結果のレスポンス
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

type reminderDispatcher interface {
	Dispatch(ctx context.Context, offset int) (usecase.DispatchResult, error)
}

type scheduleChecker interface {
	Check(ctx context.Context) (usecase.ScheduleCheckResult, error)
}

type commandHandler interface {
	Handle(ctx context.Context, cmd usecase.Command) (string, error)
}

// handler 組み立て済みのユースケースにイベントを振り分ける
type handler struct {
	dispatcher    reminderDispatcher
	watcher       scheduleChecker
	commands      commandHandler
	defaultOffset int
	logger        *zap.Logger
}

func (h *handler) handle(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	switch event.Job {
	case "", jobReminder:
		// offset 指定なしは EventBridge からの定期実行
		scheduled := event.Offset == nil
		offset := h.defaultOffset
		if !scheduled {
			offset = *event.Offset
		}
		result, err := h.dispatcher.Dispatch(ctx, offset)
		if err != nil {
			resp := failure(err, "リマインド送信エラー")
			if scheduled {
				// 定期実行はランタイムに再試行させない
				h.logger.Error("定期リマインドに失敗しました",
					zap.String("run_id", result.RunID), zap.Strings("delivered", result.Channels), zap.Error(err))
				return resp, nil
			}
			return resp, err
		}
		if result.Skipped {
			return LambdaResponse{StatusCode: http.StatusOK, Message: "予定なしのため通知スキップ"}, nil
		}
		return LambdaResponse{
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("通知送信完了（%dチャンネル）", len(result.Channels)),
		}, nil

	case jobSheet:
		if h.watcher == nil {
			return LambdaResponse{StatusCode: http.StatusBadRequest, Message: "SPREADSHEET_IDが設定されていません"}, nil
		}
		result, err := h.watcher.Check(ctx)
		if err != nil {
			// 定期実行なので再試行させない
			h.logger.Error("スケジュールの確認に失敗しました",
				zap.Strings("delivered", result.Channels), zap.Error(err))
			return failure(err, "スケジュール確認エラー"), nil
		}
		if !result.Changed {
			return LambdaResponse{StatusCode: http.StatusOK, Message: "スケジュールに変更なし"}, nil
		}
		return LambdaResponse{StatusCode: http.StatusOK, Message: "スケジュール更新を通知しました"}, nil

	case jobCommand:
		reply, err := h.commands.Handle(ctx, usecase.Command{Text: event.Command, ChannelID: event.ChannelID})
		if errors.Is(err, domain.ErrUnknownCommand) {
			h.logger.Debug("未知のコマンドを無視しました", zap.String("command", event.Command))
			return LambdaResponse{StatusCode: http.StatusBadRequest, Message: "未知のコマンドです"}, nil
		}
		if err != nil {
			h.logger.Error("コマンドの実行に失敗しました", zap.String("command", event.Command), zap.Error(err))
			return LambdaResponse{StatusCode: http.StatusInternalServerError, Message: reply}, nil
		}
		return LambdaResponse{StatusCode: http.StatusOK, Message: reply}, nil

	default:
		return LambdaResponse{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("未知のジョブです: %s", event.Job)}, nil
	}
}

// failure 取得元の障害と送信失敗でステータスを分ける
func failure(err error, message string) LambdaResponse {
	if errors.Is(err, domain.ErrSourceUnavailable) {
		return LambdaResponse{StatusCode: http.StatusBadGateway, Message: message}
	}
	return LambdaResponse{StatusCode: http.StatusInternalServerError, Message: message}
}

// lambdaHandler Lambda関数のメインハンドラー
func lambdaHandler(ctx context.Context, event LambdaEvent) (LambdaResponse, error) {
	// 設定を読み込み
	cfg, err := config.Load()
	if err != nil {
		return LambdaResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "設定読み込みエラー",
		}, err
	}

	log, err := logger.New(logger.Options{Env: cfg.Env, Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return LambdaResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "ロガー初期化エラー",
		}, err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("初期化に失敗しました", zap.Error(err))
		return LambdaResponse{
			StatusCode: http.StatusInternalServerError,
			Message:    "初期化エラー",
		}, err
	}
	defer a.Close()

	h := &handler{
		dispatcher:    a.Dispatcher,
		commands:      a.Commands,
		defaultOffset: cfg.Reminder.DefaultOffset,
		logger:        log.With(zap.String("job", event.Job)),
	}
	if a.Watcher != nil {
		h.watcher = a.Watcher
	}
	return h.handle(ctx, event)
}

func main() {
	lambda.Start(lambdaHandler)
}
