package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mitsuki/nemuri/internal/model"
	"github.com/mitsuki/nemuri/internal/repository"
)

// RunMetrics はパイプライン実行のメトリクス記録インターフェース。
// metricsパッケージのCollectorが実装する。
type RunMetrics interface {
	RecordRunSuccess(duration time.Duration)
	RecordRunFailure()
	RecordDerivedCounts(intervals, windows, anomalies int)
}

// nopMetrics はメトリクス未設定時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordRunSuccess(time.Duration)    {}
func (nopMetrics) RecordRunFailure()                 {}
func (nopMetrics) RecordDerivedCounts(int, int, int) {}

// Aggregator は3段のパイプラインを順に実行し、派生テーブルを再構築する。
//
// 1回の実行は単一の逐次処理として動作し、段の並列化は行わない。
// 各派生テーブルはリポジトリのReplaceAll（単一トランザクションでの全置換）で
// 書き換えられるため、実行が途中で落ちても古い行と新しい行が混在することはなく、
// 再実行すれば同じ状態から作り直せる（冪等）。
// 生のpresence_eventsは一切変更しない。
type Aggregator struct {
	userRepo     repository.UserRepository
	eventRepo    repository.PresenceEventRepository
	intervalRepo repository.OfflineIntervalRepository
	windowRepo   repository.SleepWindowRepository
	anomalyRepo  repository.AnomalyRepository
	logger       *slog.Logger
	metrics      RunMetrics
}

// NewAggregator はAggregatorを生成する。metricsはnilを許容する。
func NewAggregator(
	userRepo repository.UserRepository,
	eventRepo repository.PresenceEventRepository,
	intervalRepo repository.OfflineIntervalRepository,
	windowRepo repository.SleepWindowRepository,
	anomalyRepo repository.AnomalyRepository,
	logger *slog.Logger,
	metrics RunMetrics,
) *Aggregator {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Aggregator{
		userRepo:     userRepo,
		eventRepo:    eventRepo,
		intervalRepo: intervalRepo,
		windowRepo:   windowRepo,
		anomalyRepo:  anomalyRepo,
		logger:       logger,
		metrics:      metrics,
	}
}

// RunAll は全段を順に実行する: 区間抽出 → 睡眠ウィンドウ検出 → 異常検出。
// ストア障害は実行全体の失敗として返すが、個別ユーザーの設定不備
// （不正なタイムゾーン等）はそのユーザーのスキップに留める。
func (a *Aggregator) RunAll(ctx context.Context) error {
	start := time.Now()

	intervals, err := a.RecomputeOfflineIntervals(ctx)
	if err != nil {
		a.metrics.RecordRunFailure()
		return fmt.Errorf("offline interval stage failed: %w", err)
	}

	windows, err := a.RecomputeSleepWindows(ctx)
	if err != nil {
		a.metrics.RecordRunFailure()
		return fmt.Errorf("sleep window stage failed: %w", err)
	}

	anomalies, err := a.RecomputeAnomalies(ctx)
	if err != nil {
		a.metrics.RecordRunFailure()
		return fmt.Errorf("anomaly stage failed: %w", err)
	}

	duration := time.Since(start)
	a.metrics.RecordRunSuccess(duration)
	a.metrics.RecordDerivedCounts(intervals, windows, anomalies)

	a.logger.Info("集計パイプラインが完了しました",
		slog.Int("offline_intervals", intervals),
		slog.Int("sleep_windows", windows),
		slog.Int("anomalies", anomalies),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RecomputeOfflineIntervals は全ユーザーのオフライン区間を再計算し、
// offline_intervalsテーブルを全置換する。挿入した区間数を返す。
func (a *Aggregator) RecomputeOfflineIntervals(ctx context.Context) (int, error) {
	users, err := a.userRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var all []model.OfflineInterval
	for _, user := range users {
		events, err := a.eventRepo.ListByUser(ctx, user.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to load events for user %d: %w", user.ID, err)
		}
		all = append(all, ExtractOfflineIntervals(events)...)
	}

	if err := a.intervalRepo.ReplaceAll(ctx, all); err != nil {
		return 0, fmt.Errorf("failed to replace offline intervals: %w", err)
	}

	return len(all), nil
}

// RecomputeSleepWindows は全ユーザーの睡眠ウィンドウを再計算し、
// sleep_windowsテーブルを全置換する。挿入したウィンドウ数を返す。
// タイムゾーンが不正なユーザーはエラーログを出してスキップし、
// 他ユーザーの処理は継続する。
func (a *Aggregator) RecomputeSleepWindows(ctx context.Context) (int, error) {
	users, err := a.userRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var all []model.SleepWindow
	for _, user := range users {
		loc, err := time.LoadLocation(user.Timezone)
		if err != nil {
			a.logger.Error("ユーザーのタイムゾーンが不正なためスキップします",
				slog.Int64("user_id", user.ID),
				slog.String("timezone", user.Timezone),
				slog.String("error", err.Error()),
			)
			continue
		}

		windows, err := a.detectSleepWindows(ctx, user.ID, loc)
		if err != nil {
			return 0, err
		}
		all = append(all, windows...)
	}

	if err := a.windowRepo.ReplaceAll(ctx, all); err != nil {
		return 0, fmt.Errorf("failed to replace sleep windows: %w", err)
	}

	return len(all), nil
}

// detectSleepWindows は1ユーザーのオフライン区間から睡眠ウィンドウを導出する。
func (a *Aggregator) detectSleepWindows(ctx context.Context, userID int64, loc *time.Location) ([]model.SleepWindow, error) {
	intervals, err := a.intervalRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load intervals for user %d: %w", userID, err)
	}

	locals := make([]localInterval, 0, len(intervals))
	for _, iv := range intervals {
		locals = append(locals, localInterval{
			start: iv.StartUTC.In(loc),
			end:   iv.EndUTC.In(loc),
		})
	}

	merged := mergeSleepCandidates(filterSleepCandidates(locals))

	var windows []model.SleepWindow
	for _, w := range merged {
		duration := w.end.Sub(w.start)

		events, err := a.eventRepo.ListByUserInRange(ctx, userID, w.start.UTC(), w.end.UTC())
		if err != nil {
			return nil, fmt.Errorf("failed to load events in window for user %d: %w", userID, err)
		}
		statuses := make([]model.Status, 0, len(events))
		for _, ev := range events {
			statuses = append(statuses, ev.Status)
		}

		windows = append(windows, model.SleepWindow{
			UserID:          userID,
			StartLocal:      w.start,
			EndLocal:        w.end,
			DurationMinutes: int(duration / time.Minute),
			Confidence:      confidenceScore(duration, statuses),
		})
	}

	return windows, nil
}

// RecomputeAnomalies は確定済み睡眠ウィンドウ内のdoomscrollバーストを検出し、
// anomaliesテーブルを全置換する。挿入した異常数を返す。
// 前段と同様、タイムゾーン不正のユーザーはスキップして継続する。
func (a *Aggregator) RecomputeAnomalies(ctx context.Context) (int, error) {
	users, err := a.userRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var all []model.Anomaly
	for _, user := range users {
		loc, err := time.LoadLocation(user.Timezone)
		if err != nil {
			a.logger.Error("ユーザーのタイムゾーンが不正なためスキップします",
				slog.Int64("user_id", user.ID),
				slog.String("timezone", user.Timezone),
				slog.String("error", err.Error()),
			)
			continue
		}

		windows, err := a.windowRepo.ListByUser(ctx, user.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to load sleep windows for user %d: %w", user.ID, err)
		}

		for _, w := range windows {
			events, err := a.eventRepo.ListByUserInRange(ctx, user.ID, w.StartLocal.UTC(), w.EndLocal.UTC())
			if err != nil {
				return 0, fmt.Errorf("failed to load events in window for user %d: %w", user.ID, err)
			}

			for _, burst := range DetectDoomscrolls(events, loc) {
				metadataJSON, err := burst.Metadata().Encode()
				if err != nil {
					return 0, fmt.Errorf("failed to encode anomaly metadata: %w", err)
				}
				all = append(all, model.Anomaly{
					UserID:         user.ID,
					Type:           model.AnomalyTypeDoomscroll,
					TimestampLocal: burst.WakeLocal,
					MetadataJSON:   metadataJSON,
				})
			}
		}
	}

	if err := a.anomalyRepo.ReplaceAll(ctx, all); err != nil {
		return 0, fmt.Errorf("failed to replace anomalies: %w", err)
	}

	return len(all), nil
}
