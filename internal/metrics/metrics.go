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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordLogin(result string)
	RecordFavoriteOp(op string)
	RecordCartOp(op string)
	RecordCacheLookup(hit bool)
}

// ログイン結果のラベル値
const (
	LoginSuccess  = "success"
	LoginRejected = "rejected"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	logins       *prometheus.CounterVec
	favoriteOps  *prometheus.CounterVec
	cartOps      *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soulgood_http_requests_total",
			Help: "ルート・メソッド・ステータスコード別のリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "soulgood_http_request_duration_seconds",
			Help:    "リクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soulgood_logins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		favoriteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soulgood_favorite_operations_total",
			Help: "お気に入り操作数",
		}, []string{"op"}),
		cartOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soulgood_cart_operations_total",
			Help: "カート操作数",
		}, []string{"op"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soulgood_cache_lookups_total",
			Help: "一覧キャッシュの参照結果",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.logins,
		c.favoriteOps,
		c.cartOps,
		c.cacheLookups,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターン（例: /api/cart/{id}）を渡し、ラベルの種類数を抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordFavoriteOp はお気に入り操作（add, remove）を記録する。
func (c *Collector) RecordFavoriteOp(op string) {
	c.favoriteOps.WithLabelValues(op).Inc()
}

// RecordCartOp はカート操作（add, update, delete）を記録する。
func (c *Collector) RecordCartOp(op string) {
	c.cartOps.WithLabelValues(op).Inc()
}

// RecordCacheLookup はキャッシュのヒット・ミスを記録する。
func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
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

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使用する。
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordLogin(string)                                   {}
func (Nop) RecordFavoriteOp(string)                              {}
func (Nop) RecordCartOp(string)                                  {}
func (Nop) RecordCacheLookup(bool)                               {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
