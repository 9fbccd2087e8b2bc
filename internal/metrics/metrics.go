// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 外部クライアント、ミドルウェア、サービス層から利用する。
type MetricsCollector interface {
	RecordUpstreamRequest(operation string, statusCode int, duration time.Duration)
	RecordGateDecision(decision string)
	RecordStatusUpdate(status string, success bool)
	RecordHTTPStatus(statusCode int)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	gateDecisions    *prometheus.CounterVec
	statusUpdates    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	sessionsCleaned  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoteladmin_upstream_requests_total",
			Help: "外部データストア・認証サービスへのリクエスト数",
		}, []string{"operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hoteladmin_upstream_latency_seconds",
			Help:    "外部リクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoteladmin_gate_decisions_total",
			Help: "アクセス判定の結果別件数",
		}, []string{"decision"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoteladmin_status_updates_total",
			Help: "予約ステータス更新の件数",
		}, []string{"status", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hoteladmin_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hoteladmin_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamRequests,
		c.upstreamLatency,
		c.gateDecisions,
		c.statusUpdates,
		c.httpStatus,
		c.sessionsCleaned,
	)

	return c
}

// RecordUpstreamRequest は外部リクエストの結果とレイテンシを記録する。
// statusCodeが0の場合は通信エラーを表す。
func (c *Collector) RecordUpstreamRequest(operation string, statusCode int, duration time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	c.upstreamRequests.WithLabelValues(operation, code).Inc()
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordGateDecision はアクセス判定の結果を記録する。
func (c *Collector) RecordGateDecision(decision string) {
	c.gateDecisions.WithLabelValues(decision).Inc()
}

// RecordStatusUpdate は予約ステータス更新の成否を記録する。
func (c *Collector) RecordStatusUpdate(status string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.statusUpdates.WithLabelValues(status, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsCleaned は削除したセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
