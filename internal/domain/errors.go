package domain

import "errors"

var (
	// ErrSourceUnavailable カレンダー/スプレッドシートの取得失敗（通信エラー・タイムアウト）
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrDispatchFailure メッセージ送信の失敗
	ErrDispatchFailure = errors.New("dispatch failure")
	// ErrInvalidEvent 必須項目の欠けたイベント
	ErrInvalidEvent = errors.New("invalid event")
	// ErrUnknownCommand 解釈できないコマンド
	ErrUnknownCommand = errors.New("unknown command")
)
