// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッションコントローラーと同期エンジンから利用する。
type MetricsCollector interface {
	RecordSignInSuccess()
	RecordSignInFailure(code string)
	RecordSignOut()
	RecordMutation(collection, operation string)
	RecordMutationFailure(collection, operation string)
	RecordRollback(collection string)
	RecordRefreshLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signInSuccess  prometheus.Counter
	signInFail     *prometheus.CounterVec
	signOut        prometheus.Counter
	mutations      *prometheus.CounterVec
	mutationFail   *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	refreshLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signInSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detova_signin_success_total",
			Help: "サインイン成功の合計数",
		}),
		signInFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detova_signin_fail_total",
			Help: "サインイン失敗のエラーコード別合計数",
		}, []string{"code"}),
		signOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detova_signout_total",
			Help: "サインアウトの合計数",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detova_mutations_total",
			Help: "コレクションミューテーション成功のコレクション・操作別合計数",
		}, []string{"collection", "operation"}),
		mutationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detova_mutation_fail_total",
			Help: "コレクションミューテーション失敗のコレクション・操作別合計数",
		}, []string{"collection", "operation"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detova_rollbacks_total",
			Help: "楽観的更新のロールバック回数",
		}, []string{"collection"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detova_refresh_latency_seconds",
			Help:    "一括リフレッシュのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.signInSuccess,
		c.signInFail,
		c.signOut,
		c.mutations,
		c.mutationFail,
		c.rollbacks,
		c.refreshLatency,
	)

	return c
}

// RecordSignInSuccess はサインイン成功を記録する。
func (c *Collector) RecordSignInSuccess() {
	c.signInSuccess.Inc()
}

// RecordSignInFailure はサインイン失敗をエラーコード付きで記録する。
func (c *Collector) RecordSignInFailure(code string) {
	c.signInFail.WithLabelValues(code).Inc()
}

// RecordSignOut はサインアウトを記録する。
func (c *Collector) RecordSignOut() {
	c.signOut.Inc()
}

// RecordMutation はミューテーション成功を記録する。
func (c *Collector) RecordMutation(collection, operation string) {
	c.mutations.WithLabelValues(collection, operation).Inc()
}

// RecordMutationFailure はミューテーション失敗を記録する。
func (c *Collector) RecordMutationFailure(collection, operation string) {
	c.mutationFail.WithLabelValues(collection, operation).Inc()
}

// RecordRollback はロールバック発生を記録する。
func (c *Collector) RecordRollback(collection string) {
	c.rollbacks.WithLabelValues(collection).Inc()
}

// RecordRefreshLatency は一括リフレッシュのレイテンシを記録する。
func (c *Collector) RecordRefreshLatency(duration time.Duration) {
	c.refreshLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
