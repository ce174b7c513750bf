// Package scheduler は常駐プロセスでリマインドとスケジュール確認を定期実行する。
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job 定期実行する処理
type Job func(ctx context.Context)

// Scheduler cron 式に従ってジョブを実行する
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// New 指定タイムゾーンで動くスケジューラを作成
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add ジョブを登録。spec が空なら登録しない
func (s *Scheduler) Add(name, spec string, job Job) error {
	if spec == "" {
		s.logger.Info("cron式が未設定のためジョブを登録しません", zap.String("job", name))
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("ジョブ %s の登録に失敗しました: %w", name, err)
	}
	s.logger.Info("ジョブを登録しました", zap.String("job", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		started := time.Now()
		s.logger.Debug("ジョブを開始します", zap.String("job", name))
		job(s.ctx)
		s.logger.Debug("ジョブが終了しました", zap.String("job", name), zap.Duration("elapsed", time.Since(started)))
	}
}

// Len 登録済みジョブ数
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start バックグラウンドで実行を開始
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 新しい実行を止め、実行中のジョブを待つ
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("スケジューラを停止しました")
}
