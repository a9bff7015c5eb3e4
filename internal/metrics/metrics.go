// Package metrics 名字解析子系统的 Prometheus 指标
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合；nil 指针的方法调用全部为空操作
type Metrics struct {
	registry *prometheus.Registry

	lookups      *prometheus.CounterVec
	batches      *prometheus.CounterVec
	rateRejected prometheus.Counter
	cacheSaves   *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// New 创建并注册指标
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "namecache",
			Name:      "lookups_total",
			Help:      "Name lookups by cache result.",
		}, []string{"result"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "namecache",
			Name:      "batches_total",
			Help:      "Remote resolution batches by kind and outcome.",
		}, []string{"kind", "outcome"}),
		rateRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "namecache",
			Name:      "rate_limit_rejections_total",
			Help:      "Rate limiter leases that were not acquired.",
		}),
		cacheSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "namecache",
			Name:      "cache_saves_total",
			Help:      "Persistent cache saves by outcome.",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "namecache",
			Name:      "queue_depth",
			Help:      "Identifiers waiting for resolution.",
		}),
	}
	m.registry.MustRegister(m.lookups, m.batches, m.rateRejected, m.cacheSaves, m.queueDepth)
	return m
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回内部注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Lookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.lookups.WithLabelValues("hit").Inc()
	} else {
		m.lookups.WithLabelValues("miss").Inc()
	}
}

func (m *Metrics) Batch(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.batches.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateRejected.Inc()
}

func (m *Metrics) CacheSave(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.cacheSaves.WithLabelValues("ok").Inc()
	} else {
		m.cacheSaves.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
