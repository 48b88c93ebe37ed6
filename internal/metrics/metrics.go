// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mitsuki/nemuri/internal/model"
)

// Collector はPrometheusメトリクスを収集する実装。
// 収集側のIngestMetricsとパイプライン側のRunMetricsの両方を満たす。
type Collector struct {
	eventsIngested *prometheus.CounterVec
	pollErrors     prometheus.Counter
	runSuccess     prometheus.Counter
	runFail        prometheus.Counter
	runDuration    prometheus.Histogram
	intervalsCount prometheus.Gauge
	windowsCount   prometheus.Gauge
	anomaliesCount prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nemuri_events_ingested_total",
			Help: "取り込んだプレゼンス遷移イベントの合計数（正規化ステータス別）",
		}, []string{"status"}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nemuri_poll_errors_total",
			Help: "プレゼンスポーリング失敗の合計数",
		}),
		runSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nemuri_pipeline_runs_total",
			Help: "集計パイプライン実行成功の合計数",
		}),
		runFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nemuri_pipeline_failures_total",
			Help: "集計パイプライン実行失敗の合計数",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nemuri_pipeline_duration_seconds",
			Help:    "集計パイプライン実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		intervalsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nemuri_offline_intervals",
			Help: "直近の実行で生成したオフライン区間数",
		}),
		windowsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nemuri_sleep_windows",
			Help: "直近の実行で生成した睡眠ウィンドウ数",
		}),
		anomaliesCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nemuri_anomalies",
			Help: "直近の実行で生成した異常数",
		}),
	}

	reg.MustRegister(
		c.eventsIngested,
		c.pollErrors,
		c.runSuccess,
		c.runFail,
		c.runDuration,
		c.intervalsCount,
		c.windowsCount,
		c.anomaliesCount,
	)

	return c
}

// RecordEventIngested はイベント取り込みを正規化ステータス別に記録する。
func (c *Collector) RecordEventIngested(status model.Status) {
	c.eventsIngested.WithLabelValues(string(status)).Inc()
}

// RecordPollError はポーリング失敗を記録する。
func (c *Collector) RecordPollError() {
	c.pollErrors.Inc()
}

// RecordRunSuccess はパイプライン実行成功と実行時間を記録する。
func (c *Collector) RecordRunSuccess(duration time.Duration) {
	c.runSuccess.Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordRunFailure はパイプライン実行失敗を記録する。
func (c *Collector) RecordRunFailure() {
	c.runFail.Inc()
}

// RecordDerivedCounts は直近の実行で生成した派生行数を記録する。
func (c *Collector) RecordDerivedCounts(intervals, windows, anomalies int) {
	c.intervalsCount.Set(float64(intervals))
	c.windowsCount.Set(float64(windows))
	c.anomaliesCount.Set(float64(anomalies))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
