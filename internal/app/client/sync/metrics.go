package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"plantkeeper/internal/app/client/queue"
)

// Metrics экспортирует состояние синхронизации клиента.
type Metrics struct {
	runs      *prometheus.CounterVec
	mutations *prometheus.CounterVec
	duration  prometheus.Histogram
	pending   prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg. nil reg - метрики считаются, но не экспортируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantkeeper",
			Subsystem: "sync",
			Name:      "runs_total",
			Help:      "Sync runs by final status.",
		}, []string{"status"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plantkeeper",
			Subsystem: "sync",
			Name:      "mutations_total",
			Help:      "Queued mutations processed by entity, action and outcome.",
		}, []string{"entity", "action", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plantkeeper",
			Subsystem: "sync",
			Name:      "run_duration_seconds",
			Help:      "Duration of sync runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plantkeeper",
			Subsystem: "sync",
			Name:      "pending_mutations",
			Help:      "Mutations waiting in the sync queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.mutations, m.duration, m.pending)
	}
	return m
}

func (m *Metrics) observeRun(status Status, d time.Duration) {
	m.runs.WithLabelValues(string(status)).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeMutation(mu queue.Mutation, outcome string) {
	m.mutations.WithLabelValues(string(mu.EntityType), string(mu.Action), outcome).Inc()
}

func (m *Metrics) setPending(n int) {
	m.pending.Set(float64(n))
}
