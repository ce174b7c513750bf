// Package reminder はカレンダーイベントからリマインドメッセージを組み立てる。
// 外部サービスには依存せず、取得済みのイベントとスケジュールだけを扱う。
package reminder

import (
	"fmt"
	"time"
)

// JST リマインドの日付計算に使う固定タイムゾーン (UTC+9)
var JST = time.FixedZone("JST", 9*60*60)

// DayWindow ウィンドウポリシーの許容幅
const DayWindow = 24 * time.Hour

// DayPolicy 日時が対象日に該当するかの判定方法
type DayPolicy string

const (
	// PolicyExactDay 月と日が一致すれば該当（年は無視）
	PolicyExactDay DayPolicy = "exact-day"
	// PolicyWindow 対象日との差が24時間以内なら該当
	PolicyWindow DayPolicy = "window"
	// PolicyOnOrAfter 対象日以降なら該当
	PolicyOnOrAfter DayPolicy = "on-or-after"
)

// ParseDayPolicy 設定値からポリシーを解釈
func ParseDayPolicy(s string) (DayPolicy, error) {
	switch p := DayPolicy(s); p {
	case PolicyExactDay, PolicyWindow, PolicyOnOrAfter:
		return p, nil
	default:
		return "", fmt.Errorf("未知の日付ポリシーです: %q", s)
	}
}

// Match t が targetDay に該当するか判定する。暦の比較は loc で行う。
func (p DayPolicy) Match(t, targetDay time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = JST
	}

	switch p {
	case PolicyExactDay:
		a, b := t.In(loc), targetDay.In(loc)
		return a.Month() == b.Month() && a.Day() == b.Day()
	case PolicyWindow:
		d := targetDay.Sub(t)
		if d < 0 {
			d = -d
		}
		return d <= DayWindow
	case PolicyOnOrAfter:
		return !t.Before(targetDay)
	default:
		return false
	}
}

// TargetDay now の loc における0時に offset 日を足した日時
func TargetDay(now time.Time, offset int, loc *time.Location) time.Time {
	if loc == nil {
		loc = JST
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, loc)
}
