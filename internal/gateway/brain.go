package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/domain"
)

const (
	// KeyReminderChannel 購読チャンネル（チャンネルID→フラグ）を保存するキー
	KeyReminderChannel = "REMINDER_CHANNEL"
	// KeySheetSchedule 輪講スケジュールのスナップショットを保存するキー
	KeySheetSchedule = "SHEETSCHEDULE"
)

// Brain 実行をまたいで値を保持するキーバリューストア
type Brain interface {
	// Get 値が無ければ ok=false を返す
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryBrain プロセス内だけで値を保持する Brain。ローカル実行とテスト用
type MemoryBrain struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBrain 空の MemoryBrain を作成
func NewMemoryBrain() *MemoryBrain {
	return &MemoryBrain{data: make(map[string][]byte)}
}

func (b *MemoryBrain) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (b *MemoryBrain) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), value...)
	return nil
}

// BrainRepository Brain 上に購読チャンネルとスケジュールをJSONで保存する。
// usecase.SubscriptionRepository と usecase.ScheduleRepository を実装する。
type BrainRepository struct {
	brain Brain
}

// NewBrainRepository リポジトリを作成
func NewBrainRepository(brain Brain) *BrainRepository {
	return &BrainRepository{brain: brain}
}

// LoadSubscriptions 購読チャンネルを読み込む。未保存なら空
func (r *BrainRepository) LoadSubscriptions(ctx context.Context) (map[string]bool, error) {
	subscriptions := make(map[string]bool)
	if err := r.load(ctx, KeyReminderChannel, &subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// SaveSubscriptions 購読チャンネルを保存
func (r *BrainRepository) SaveSubscriptions(ctx context.Context, subscriptions map[string]bool) error {
	if subscriptions == nil {
		subscriptions = map[string]bool{}
	}
	return r.save(ctx, KeyReminderChannel, subscriptions)
}

// LoadSchedule スケジュールのスナップショットを読み込む。未保存なら空
func (r *BrainRepository) LoadSchedule(ctx context.Context) ([]domain.ScheduleEntry, error) {
	var entries []domain.ScheduleEntry
	if err := r.load(ctx, KeySheetSchedule, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveSchedule スケジュールのスナップショットを保存
func (r *BrainRepository) SaveSchedule(ctx context.Context, entries []domain.ScheduleEntry) error {
	if entries == nil {
		entries = []domain.ScheduleEntry{}
	}
	return r.save(ctx, KeySheetSchedule, entries)
}

func (r *BrainRepository) load(ctx context.Context, key string, dest any) error {
	raw, ok, err := r.brain.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("%s の読み込みに失敗しました: %w", key, err)
	}
	if !ok || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%s のJSON解析に失敗しました: %w", key, err)
	}
	return nil
}

func (r *BrainRepository) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s のJSON変換に失敗しました: %w", key, err)
	}
	if err := r.brain.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("%s の保存に失敗しました: %w", key, err)
	}
	return nil
}
