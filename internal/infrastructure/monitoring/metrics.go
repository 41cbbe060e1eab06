// Package monitoring carries the prometheus metrics, the zap-backed logger,
// and the tracing bootstrap.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the service's prometheus collectors.
type Metrics struct {
	// HTTP surface
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Chat pipeline
	TurnsTotal        *prometheus.CounterVec
	RiskVerdictsTotal *prometheus.CounterVec
	GateDenialsTotal  *prometheus.CounterVec

	PipelineDuration   prometheus.Histogram
	DatastoreDuration  prometheus.Histogram
	GenerationDuration prometheus.Histogram
	FirstTokenLatency  prometheus.Histogram
	TokenEstimateTotal *prometheus.CounterVec
}

// NewMetrics registers all collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccs",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ccs",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccs",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Chat turns by tenant and outcome (completed, blocked, rate_limited, failed).",
		}, []string{"tenant", "outcome"}),

		RiskVerdictsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccs",
			Subsystem: "risk",
			Name:      "verdicts_total",
			Help:      "Risk classifier verdicts by kind and stage (pattern, judge, skipped, failed_open).",
		}, []string{"kind", "stage"}),

		GateDenialsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccs",
			Subsystem: "gate",
			Name:      "denials_total",
			Help:      "Request gate denials by tenant.",
		}, []string{"tenant"}),

		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ccs",
			Subsystem: "pipeline",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn latency.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		DatastoreDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ccs",
			Subsystem: "pipeline",
			Name:      "datastore_seconds",
			Help:      "Cumulative datastore time per turn.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		GenerationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ccs",
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Streamed completion wall time.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		FirstTokenLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ccs",
			Subsystem: "generation",
			Name:      "first_token_seconds",
			Help:      "Time to first streamed token.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),

		TokenEstimateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ccs",
			Subsystem: "generation",
			Name:      "token_estimate_total",
			Help:      "Estimated completion tokens by tenant. Telemetry-grade, not billing.",
		}, []string{"tenant"}),
	}
}

// NewDefaultMetrics registers on the default prometheus registry.
func NewDefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// ObserveTurn records one finished turn.
func (m *Metrics) ObserveTurn(tenant, outcome string, total time.Duration) {
	m.TurnsTotal.WithLabelValues(tenant, outcome).Inc()
	m.PipelineDuration.Observe(total.Seconds())
}
