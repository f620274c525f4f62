// Package metrics exposes the Prometheus collectors shared by the router,
// the feedback loop and the dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_decisions_total",
			Help: "Routing decisions by strategy",
		},
		[]string{"strategy"},
	)

	ValidationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "switchyard_validation_failures_total",
			Help: "Decisions rejected by the validator and re-derived as local only",
		},
	)

	RecordFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_record_failures_total",
			Help: "Performance recording failures by stage",
		},
		[]string{"stage"},
	)

	InsightCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "switchyard_insight_cache_total",
			Help: "Insight cache lookups by result",
		},
		[]string{"result"},
	)

	InvocationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "switchyard_invocation_seconds",
			Help:    "Model invocation latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "outcome"},
	)
)
