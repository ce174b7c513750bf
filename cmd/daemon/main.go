// Command daemon は常駐プロセスとして cron でリマインドとスケジュール確認を実行し、/metrics を公開する。
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/k-negishi/google-calendar-slack-reminder/internal/app"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/config"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/logger"
	"github.com/k-negishi/google-calendar-slack-reminder/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	zl, err := logger.New(logger.Options{Env: cfg.Env, Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗しました: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("常駐プロセスが異常終了しました", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := scheduler.New(a.Location, zl)
	if err := sched.Add("reminder", cfg.ReminderCron, a.Dispatcher.RunScheduled); err != nil {
		return err
	}
	if a.Watcher != nil {
		if err := sched.Add("sheet", cfg.SheetCron, a.Watcher.RunScheduled); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("メトリクスを公開します", zap.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zl.Info("シャットダウンします")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("HTTPサーバの停止に失敗しました", zap.Error(err))
	}
	return nil
}
