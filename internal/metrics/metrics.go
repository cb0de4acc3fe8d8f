package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes.
const (
	OutcomeResolved  = "resolved"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
)

var (
	// Turn metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealth_cycles_total",
			Help: "Total request/response cycles by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	CycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stealth_cycle_duration_seconds",
			Help:    "Time from submission to resolution of a cycle",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	BackendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealth_backend_failures_total",
			Help: "Total backend call failures by failure kind",
		},
		[]string{"kind"},
	)

	ThreadsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stealth_threads_active",
			Help: "Number of live chat threads",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stealth_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stealth_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)
)
