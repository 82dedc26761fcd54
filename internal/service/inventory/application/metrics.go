package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 汇总预占引擎与过期回收器的 Prometheus 指标。
type Metrics struct {
	Reservations    *prometheus.CounterVec
	Releases        *prometheus.CounterVec
	Commits         prometheus.Counter
	CommittedHolds  prometheus.Counter
	OpDuration      *prometheus.HistogramVec
	ReconcileCycles *prometheus.CounterVec
	ReconcileItems  *prometheus.CounterVec
	ReconcileTime   prometheus.Histogram
}

// NewMetrics 在 reg 上注册全部指标。同一个 Registerer 只能调用一次。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Reservations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "reservations_total",
			Help:      "Reserve attempts by result.",
		}, []string{"result"}),
		Releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "releases_total",
			Help:      "Release attempts by outcome.",
		}, []string{"outcome"}),
		Commits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "commits_total",
			Help:      "commitReservations calls.",
		}),
		CommittedHolds: f.NewCounter(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "committed_reservations_total",
			Help:      "Reservation records consumed by commit.",
		}),
		OpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "operation_duration_seconds",
			Help:      "Latency of reservation engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		ReconcileCycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "reconcile_cycles_total",
			Help:      "Expiry reconciler cycles by outcome.",
		}, []string{"outcome"}),
		ReconcileItems: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inventory",
			Name:      "reconcile_reservations_total",
			Help:      "Expired reservations handled by the reconciler, by outcome.",
		}, []string{"outcome"}),
		ReconcileTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inventory",
			Name:      "reconcile_cycle_duration_seconds",
			Help:      "Duration of one reconciler cycle.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// 未显式注入时使用私有 registry，指标不会被导出。
func unregisteredMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
