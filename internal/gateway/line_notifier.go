package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

// lineTextLimit LINEのテキストメッセージ1件の上限文字数
const lineTextLimit = 5000

// LINENotifier LINE Messaging APIを使用したNotifierの実装。
// channelID には送信先のグループID / ユーザーIDを渡す。
type LINENotifier struct {
	channelAccessToken string
	httpClient         *http.Client
	endpoint           string
}

// lineMessage LINE APIに送信するメッセージ構造体
type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// linePushRequest LINE Push APIのリクエスト構造体
type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// lineErrorResponse LINE APIのエラーレスポンス構造体
type lineErrorResponse struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

// NewLINENotifier LINE通知クライアントを作成
func NewLINENotifier(channelAccessToken, endpoint string) *LINENotifier {
	if endpoint == "" {
		endpoint = "https://api.line.me/v2/bot/message/push"
	}
	return &LINENotifier{
		channelAccessToken: channelAccessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint: endpoint,
	}
}

// SendReminder リマインドをテキストにしてLINEで通知
func (n *LINENotifier) SendReminder(ctx context.Context, channelID string, message domain.ReminderMessage) error {
	return n.sendPushMessage(ctx, channelID, buildReminderText(message))
}

// UploadFile LINEにはファイル送信がないため、タイトルと本文をテキストで送る
func (n *LINENotifier) UploadFile(ctx context.Context, channelID string, file domain.ScheduleFile) error {
	return n.sendPushMessage(ctx, channelID, truncateText(file.Title+"\n\n"+file.Content, lineTextLimit))
}

// buildReminderText 添付メッセージをLINE向けのテキストに変換
func buildReminderText(message domain.ReminderMessage) string {
	var b strings.Builder
	b.WriteString(strings.TrimPrefix(message.Pretext, "@channel "))
	b.WriteString("\n")

	for _, f := range message.Fields {
		// Event で予定の区切りを入れる
		if f.Title == "Event" {
			b.WriteString(fmt.Sprintf("\n🔸 %s\n", f.Value))
			continue
		}
		b.WriteString(fmt.Sprintf("   %s: %s\n", f.Title, f.Value))
	}
	return truncateText(b.String(), lineTextLimit)
}

func truncateText(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// sendPushMessage LINE Push APIでメッセージを送信
func (n *LINENotifier) sendPushMessage(ctx context.Context, to, message string) error {
	pushRequest := linePushRequest{
		To: to,
		Messages: []lineMessage{
			{
				Type: "text",
				Text: message,
			},
		},
	}

	requestBody, err := json.Marshal(pushRequest)
	if err != nil {
		return fmt.Errorf("リクエストボディのJSON変換に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", n.channelAccessToken))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LINE APIリクエストの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errorResponse lineErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errorResponse); err != nil {
			return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d, レスポンス解析不可: %v)", resp.StatusCode, err)
		}

		errorDetails := errorResponse.Message
		if len(errorResponse.Details) > 0 {
			errorDetails += fmt.Sprintf(" (詳細: %s)", errorResponse.Details[0].Message)
		}

		return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d): %s", resp.StatusCode, errorDetails)
	}

	return nil
}
