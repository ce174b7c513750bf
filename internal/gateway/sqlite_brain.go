package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const brainSchema = `CREATE TABLE IF NOT EXISTS brain (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLiteBrain SQLite のテーブルを使う Brain。単体で常駐させる場合向け
type SQLiteBrain struct {
	db *sqlx.DB
}

// OpenSQLiteBrain path のデータベースを開き、テーブルを用意する
func OpenSQLiteBrain(ctx context.Context, path string) (*SQLiteBrain, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("SQLiteのオープンに失敗しました: %w", err)
	}
	// 書き込みは1本に絞る
	db.SetMaxOpenConns(1)

	brain := NewSQLiteBrain(db)
	if err := brain.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return brain, nil
}

// NewSQLiteBrain 開いた DB から Brain を作成
func NewSQLiteBrain(db *sqlx.DB) *SQLiteBrain {
	return &SQLiteBrain{db: db}
}

// Migrate brain テーブルを作成
func (b *SQLiteBrain) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, brainSchema); err != nil {
		return fmt.Errorf("brainテーブルの作成に失敗しました: %w", err)
	}
	return nil
}

func (b *SQLiteBrain) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.db.GetContext(ctx, &value, `SELECT value FROM brain WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (b *SQLiteBrain) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO brain (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}

// Close DB を閉じる
func (b *SQLiteBrain) Close() error {
	return b.db.Close()
}
