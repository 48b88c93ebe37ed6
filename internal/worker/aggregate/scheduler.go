// Package aggregate は集計パイプラインの定期実行を提供する。
package aggregate

import (
	"context"
	"log/slog"
	"time"
)

// PipelineRunner はパイプライン全段の実行インターフェース。
// pipeline.Aggregatorが実装する。
type PipelineRunner interface {
	RunAll(ctx context.Context) error
}

// Scheduler は集計パイプラインを一定間隔で実行する。
// パイプラインは毎回すべての派生テーブルを作り直すため、
// 実行間隔の変更や実行の重複防止のための状態管理は不要で、
// 単一のティッカーによる逐次実行のみ行う。
type Scheduler struct {
	runner PipelineRunner
	logger *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(runner PipelineRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		logger: logger,
	}
}

// Start はinterval間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("集計スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("集計パイプラインの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("集計スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("集計パイプラインの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はパイプラインを1回実行する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runner.RunAll(ctx)
}
