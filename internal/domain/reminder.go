package domain

import "time"

// ReminderField リマインドメッセージ内の表示単位
type ReminderField struct {
	Title string
	Value string
	Short bool
}

// ReminderMessage チャンネルに送信する添付付きメッセージ
type ReminderMessage struct {
	Fallback   string
	Color      string
	Pretext    string
	Fields     []ReminderField
	Footer     string
	FooterIcon string
	MarkdownIn []string
}

// ScheduleEntry スプレッドシートから取得した輪講スケジュールの1件
type ScheduleEntry struct {
	Name string    `json:"name"`
	Day  time.Time `json:"day"`
}

// ScheduleFile スケジュール更新時にアップロードするファイル
type ScheduleFile struct {
	Title    string
	Filename string
	Content  string
	FileType string
}
