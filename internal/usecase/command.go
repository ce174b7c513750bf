package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

var reminderCommandPattern = regexp.MustCompile(`(?i)^reminder (\d+)$`)

// Command チャットから受け取ったコマンド
type Command struct {
	Text      string `json:"text"`
	ChannelID string `json:"channel_id"`
}

// ReminderRunner 任意オフセットでリマインドを実行する
type ReminderRunner interface {
	Dispatch(ctx context.Context, offset int) (DispatchResult, error)
}

// CommandHandler リマインド関連コマンドを処理するユースケース
type CommandHandler struct {
	runner        ReminderRunner
	subscriptions SubscriptionRepository
	logger        *zap.Logger
}

// NewCommandHandler ユースケースを生成
func NewCommandHandler(runner ReminderRunner, subscriptions SubscriptionRepository, logger *zap.Logger) *CommandHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommandHandler{
		runner:        runner,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// Handle コマンドを実行し、返信メッセージを返す。失敗時も返信メッセージを返す
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) (string, error) {
	text := strings.TrimSpace(cmd.Text)
	h.logger.Debug("コマンドを受信しました", zap.String("text", text), zap.String("channel", cmd.ChannelID))

	if m := reminderCommandPattern.FindStringSubmatch(text); m != nil {
		offset, err := strconv.Atoi(m[1])
		if err != nil {
			return "オフセットが不正です", fmt.Errorf("オフセットの解析に失敗しました: %w", err)
		}
		return h.remind(ctx, offset)
	}

	switch strings.ToLower(text) {
	case "reminder-toggle":
		return h.toggle(ctx, cmd.ChannelID)
	case "checkreminder":
		return h.check(ctx)
	case "resetreminder":
		return h.reset(ctx)
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownCommand, text)
	}
}

func (h *CommandHandler) remind(ctx context.Context, offset int) (string, error) {
	result, err := h.runner.Dispatch(ctx, offset)
	if err != nil {
		return fmt.Sprintf("リマインドの送信に失敗しました: %v", err), err
	}
	if result.Skipped {
		return fmt.Sprintf("%s の予定にリマインド対象はありません", result.TargetDay.Format("01/02")), nil
	}
	return fmt.Sprintf("%s の予定 (%d件) を %d チャンネルに送信しました",
		result.TargetDay.Format("01/02"), result.Matched, len(result.Channels)), nil
}

func (h *CommandHandler) toggle(ctx context.Context, channelID string) (string, error) {
	if channelID == "" {
		return "チャンネルIDがありません", fmt.Errorf("%w: channel_id が指定されていません", domain.ErrUnknownCommand)
	}

	subscriptions, err := h.subscriptions.LoadSubscriptions(ctx)
	if err != nil {
		return "購読状態の読み込みに失敗しました", err
	}
	if subscriptions == nil {
		subscriptions = map[string]bool{}
	}

	enabled := !subscriptions[channelID]
	subscriptions[channelID] = enabled
	if err := h.subscriptions.SaveSubscriptions(ctx, subscriptions); err != nil {
		return "購読状態の保存に失敗しました", err
	}

	h.logger.Info("購読状態を更新しました", zap.String("channel", channelID), zap.Bool("enabled", enabled))
	return fmt.Sprintf("Update reminder status in this channel: %t", enabled), nil
}

func (h *CommandHandler) check(ctx context.Context) (string, error) {
	subscriptions, err := h.subscriptions.LoadSubscriptions(ctx)
	if err != nil {
		return "購読状態の読み込みに失敗しました", err
	}
	if subscriptions == nil {
		subscriptions = map[string]bool{}
	}

	body, err := json.Marshal(subscriptions)
	if err != nil {
		return "購読状態の変換に失敗しました", err
	}
	return string(body), nil
}

func (h *CommandHandler) reset(ctx context.Context) (string, error) {
	if err := h.subscriptions.SaveSubscriptions(ctx, map[string]bool{}); err != nil {
		return "購読状態のリセットに失敗しました", err
	}
	return "Reset REMINDER_CHANNEL", nil
}
