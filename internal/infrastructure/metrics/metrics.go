// Package metrics exports Prometheus metrics for bulk pricing runs and the
// database pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"farmacia/internal/domain/pricing"
	"farmacia/internal/infrastructure/storage/postgres"
)

const namespace = "farmacia"

// BulkMetrics implements pricing.BulkObserver. A nil *BulkMetrics is a no-op.
type BulkMetrics struct {
	items    *prometheus.CounterVec
	runs     prometheus.Counter
	duration prometheus.Histogram
	failed   prometheus.Histogram
}

var _ pricing.BulkObserver = (*BulkMetrics)(nil)

// NewBulkMetrics registers the bulk metrics on reg. A nil reg returns a
// collector that records nothing.
func NewBulkMetrics(reg prometheus.Registerer) *BulkMetrics {
	if reg == nil {
		return &BulkMetrics{}
	}
	m := &BulkMetrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_items_total",
			Help:      "Entities processed by bulk markup runs, by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_runs_total",
			Help:      "Completed bulk markup runs.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_run_duration_seconds",
			Help:      "Duration of bulk markup runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		failed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_run_failed_items",
			Help:      "Failed entities per bulk markup run.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500},
		}),
	}
	reg.MustRegister(m.items, m.runs, m.duration, m.failed)
	return m
}

// ObserveItem counts one processed entity. An empty kind is a success.
func (m *BulkMetrics) ObserveItem(kind string) {
	if m == nil || m.items == nil {
		return
	}
	m.items.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveRun records a finished run.
func (m *BulkMetrics) ObserveRun(_, failed int, elapsed time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.Inc()
	m.duration.Observe(elapsed.Seconds())
	m.failed.Observe(float64(failed))
}

func normalizeLabel(kind string) string {
	if kind == "" {
		return "ok"
	}
	return kind
}

// StatsSource yields connection pool statistics.
type StatsSource interface {
	Stats() postgres.PoolStats
}

// RegisterPoolCollector exports pool statistics as gauges read at scrape time.
func RegisterPoolCollector(reg prometheus.Registerer, src StatsSource) {
	if reg == nil || src == nil {
		return
	}
	gauge := func(name, help string, read func(postgres.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(src.Stats()) })
	}
	reg.MustRegister(
		gauge("total_conns", "Open connections.", func(s postgres.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("idle_conns", "Idle connections.", func(s postgres.PoolStats) float64 { return float64(s.IdleConns) }),
		gauge("acquired_conns", "Connections in use.", func(s postgres.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("max_conns", "Configured connection limit.", func(s postgres.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}
