// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// カタログソース、リストストア、認証、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordCatalogLoad(source string, movies int)
	RecordCatalogFetchFailure(source string, reason string)
	RecordCatalogHTTPStatus(statusCode int)
	RecordCatalogFetchLatency(duration time.Duration)
	RecordListToggle(list, action, result string)
	RecordSignIn(result string)
	SetActiveWorkspaces(n int)
	RecordRequest(method, route string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	catalogLoads      *prometheus.CounterVec
	catalogFailures   *prometheus.CounterVec
	catalogHTTPStatus *prometheus.CounterVec
	catalogLatency    prometheus.Histogram
	catalogSize       prometheus.Gauge
	listToggles       *prometheus.CounterVec
	signIns           *prometheus.CounterVec
	workspaces        prometheus.Gauge
	requestDuration   *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		catalogLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieverse_catalog_loads_total",
			Help: "カタログ全件置換の回数",
		}, []string{"source"}),
		catalogFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieverse_catalog_fetch_fail_total",
			Help: "カタログ取得失敗の合計数",
		}, []string{"source", "reason"}),
		catalogHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieverse_catalog_http_status_total",
			Help: "カタログ取得時のHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		catalogLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "movieverse_catalog_fetch_latency_seconds",
			Help:    "カタログ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "movieverse_catalog_movies",
			Help: "カタログに読み込まれている作品数",
		}),
		listToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieverse_list_toggles_total",
			Help: "お気に入り・ウォッチリストの変更操作数",
		}, []string{"list", "action", "result"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movieverse_sign_ins_total",
			Help: "ログイン試行の結果別件数",
		}, []string{"result"}),
		workspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "movieverse_active_workspaces",
			Help: "保持中のブラウザワークスペース数",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movieverse_http_request_duration_seconds",
			Help:    "APIリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status_code"}),
	}

	reg.MustRegister(
		c.catalogLoads,
		c.catalogFailures,
		c.catalogHTTPStatus,
		c.catalogLatency,
		c.catalogSize,
		c.listToggles,
		c.signIns,
		c.workspaces,
		c.requestDuration,
	)

	return c
}

// RecordCatalogLoad はカタログの全件置換を記録する。
func (c *Collector) RecordCatalogLoad(source string, movies int) {
	c.catalogLoads.WithLabelValues(source).Inc()
	c.catalogSize.Set(float64(movies))
}

// RecordCatalogFetchFailure はカタログ取得失敗を記録する。
// reason には "http", "status", "parse" などの低カーディナリティな分類を渡す。
func (c *Collector) RecordCatalogFetchFailure(source string, reason string) {
	c.catalogFailures.WithLabelValues(source, reason).Inc()
}

// RecordCatalogHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordCatalogHTTPStatus(statusCode int) {
	c.catalogHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCatalogFetchLatency はカタログ取得のレイテンシを記録する。
func (c *Collector) RecordCatalogFetchLatency(duration time.Duration) {
	c.catalogLatency.Observe(duration.Seconds())
}

// RecordListToggle はリスト変更操作を記録する。
func (c *Collector) RecordListToggle(list, action, result string) {
	c.listToggles.WithLabelValues(list, action, result).Inc()
}

// RecordSignIn はログイン試行の結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// SetActiveWorkspaces は保持中のワークスペース数を設定する。
func (c *Collector) SetActiveWorkspaces(n int) {
	c.workspaces.Set(float64(n))
}

// RecordRequest はAPIリクエストの処理時間を記録する。
// route にはchiのルートパターンを渡し、パスパラメータでラベルが増えないようにする。
func (c *Collector) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集時のエラーは可能な範囲で無視し、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}

// NewRegistry はGoランタイムとプロセスのコレクターを登録済みのレジストリを返す。
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

var _ MetricsCollector = (*Collector)(nil)
