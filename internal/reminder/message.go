package reminder

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const (
	messageFallback   = "Next schedule"
	messagePretext    = "@channel 明日の予定だよ〜〜〜"
	messageFooter     = "reminder"
	messageFooterIcon = "https://emoji.slack-edge.com/T110Z5F17/version/953e3addf396be42.png"
)

// BuildMessage フィールド一覧から送信用メッセージを組み立てる
func BuildMessage(fields []domain.ReminderField, color string) domain.ReminderMessage {
	return domain.ReminderMessage{
		Fallback:   messageFallback,
		Color:      color,
		Pretext:    messagePretext,
		Fields:     fields,
		Footer:     messageFooter,
		FooterIcon: messageFooterIcon,
		MarkdownIn: []string{"pretext", "text", "fields"},
	}
}

// RandomColor 添付のアクセントカラーをランダムに選ぶ
func RandomColor() string {
	return colorful.FastHappyColor().Hex()
}
