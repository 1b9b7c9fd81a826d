// Package metrics exposes Prometheus collectors for procurement runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/andresuchdata/procurement-engine/internal/domain"
)

type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	StageDuration      *prometheus.HistogramVec
	ExceptionsTotal    *prometheus.CounterVec
	SupplierOrderLines prometheus.Gauge
	NetRequirement     prometheus.Gauge
	LastSuccess        prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns collectors registered on the global Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procurement_runs_total",
				Help: "Total number of procurement runs by terminal status",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procurement_run_duration_seconds",
				Help:    "Duration of procurement runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"status"},
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "procurement_stage_duration_seconds",
				Help:    "Duration of individual engine stages",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"stage"},
		),
		ExceptionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "procurement_exceptions_total",
				Help: "Exceptions recorded by stage and reason",
			},
			[]string{"stage", "reason"},
		),
		SupplierOrderLines: f.NewGauge(prometheus.GaugeOpts{
			Name: "procurement_supplier_order_lines",
			Help: "Supplier order lines produced by the latest run",
		}),
		NetRequirement: f.NewGauge(prometheus.GaugeOpts{
			Name: "procurement_net_requirement_units",
			Help: "Total net requirement of the latest run",
		}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "procurement_last_success_timestamp_seconds",
			Help: "Unix time of the last succeeded run",
		}),
	}
}

// ObserveRun records the outcome of a run.
func (m *Metrics) ObserveRun(summary domain.RunSummary) {
	if m == nil {
		return
	}
	status := string(summary.Status)
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(summary.Duration().Seconds())
	for _, c := range summary.ExceptionCounts {
		m.ExceptionsTotal.WithLabelValues(c.Stage, c.Reason).Add(float64(c.Count))
	}
	if summary.Status == domain.RunSucceeded {
		m.SupplierOrderLines.Set(float64(summary.SupplierOrderLines))
		m.NetRequirement.Set(float64(summary.TotalNetRequirement))
		m.LastSuccess.Set(float64(summary.FinishedAt.Unix()))
	}
}

// ObserveStage records one stage duration in seconds.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}
