package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// SlackNotifier Slack Web APIを使用したNotifierの実装
type SlackNotifier struct {
	client *slack.Client
	logger *zap.Logger
}

// NewSlackNotifier Slack通知クライアントを作成。apiURL が空なら公式エンドポイントを使う
func NewSlackNotifier(botToken, apiURL string, logger *zap.Logger) *SlackNotifier {
	opts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackNotifier{
		client: slack.New(botToken, opts...),
		logger: logger,
	}
}

// SendReminder リマインドを添付メッセージとしてチャンネルに投稿
func (n *SlackNotifier) SendReminder(ctx context.Context, channelID string, message domain.ReminderMessage) error {
	_, ts, err := n.client.PostMessageContext(ctx, channelID,
		slack.MsgOptionAttachments(toAttachment(message)),
		slack.MsgOptionPostMessageParameters(slack.PostMessageParameters{LinkNames: 1}),
	)
	if err != nil {
		return fmt.Errorf("slackへのメッセージ送信に失敗しました (channel: %s): %w", channelID, err)
	}
	n.logger.Debug("Slackにリマインドを投稿しました", zap.String("channel", channelID), zap.String("ts", ts))
	return nil
}

// UploadFile テキストをファイルとしてチャンネルにアップロード
func (n *SlackNotifier) UploadFile(ctx context.Context, channelID string, file domain.ScheduleFile) error {
	summary, err := n.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:  channelID,
		Content:  file.Content,
		FileSize: len(file.Content),
		Filename: file.Filename,
		Title:    file.Title,
	})
	if err != nil {
		return fmt.Errorf("slackへのファイルアップロードに失敗しました (channel: %s): %w", channelID, err)
	}
	n.logger.Debug("Slackにファイルをアップロードしました", zap.String("channel", channelID), zap.String("file_id", summary.ID), zap.String("filetype", file.FileType))
	return nil
}

func toAttachment(message domain.ReminderMessage) slack.Attachment {
	fields := make([]slack.AttachmentField, 0, len(message.Fields))
	for _, f := range message.Fields {
		fields = append(fields, slack.AttachmentField{
			Title: f.Title,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return slack.Attachment{
		Fallback:   message.Fallback,
		Color:      message.Color,
		Pretext:    message.Pretext,
		Fields:     fields,
		Footer:     message.Footer,
		FooterIcon: message.FooterIcon,
		MarkdownIn: message.MarkdownIn,
	}
}
