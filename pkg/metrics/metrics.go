// Package metrics defines the Prometheus metric collectors used across the
// service and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	PlansTotal           *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	AcceptedCombinations prometheus.Histogram
	EvaluatedAssignments prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	RecordWritesTotal    *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. Passing nil
// registers with the Prometheus default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		PlansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grade_plans_total",
				Help: "Total plans by outcome (accepted, zero_result, capped, error).",
			},
			[]string{"outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grade_search_latency_seconds",
				Help:    "Combination search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"cache_status"},
		),
		AcceptedCombinations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "grade_search_accepted_combinations",
				Help:    "Accepted combinations per search.",
				Buckets: []float64{0, 1, 10, 100, 1000, 10000, 20000},
			},
		),
		EvaluatedAssignments: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "grade_search_evaluated_assignments",
				Help:    "Complete grade assignments scored per search.",
				Buckets: prometheus.ExponentialBuckets(1, 10, 8),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		RecordWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semester_record_writes_total",
				Help: "Semester record writes by kind (history, draft) and status.",
			},
			[]string{"kind", "status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.PlansTotal,
		m.SearchLatency,
		m.AcceptedCombinations,
		m.EvaluatedAssignments,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RecordWritesTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
