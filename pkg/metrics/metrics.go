// Package metrics exposes Prometheus collectors for usage fetches and
// the HTTP API.
//
// Collectors live in a private registry so tests and multiple instances
// never collide with the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xmhha/quota-meter/pkg/usage"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "quota_meter"

// OutcomeSuccess labels fetches that returned a snapshot. Failures are
// labelled with their usage.Kind.
const OutcomeSuccess = "success"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// FetchTotal counts fetches by strategy and outcome
	FetchTotal *prometheus.CounterVec
	// FetchDuration tracks fetch latency by strategy
	FetchDuration *prometheus.HistogramVec
	// UsagePercent is the last observed percentage by category
	UsagePercent *prometheus.GaugeVec
	// HTTPRequestsTotal counts API requests
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration tracks API request latency
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers all Prometheus metrics
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Total number of usage fetches",
			},
			[]string{"strategy", "outcome"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Usage fetch duration in seconds",
				// The cli strategy routinely takes several seconds.
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"strategy"},
		),
		UsagePercent: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "usage_percent",
				Help:      "Last observed usage percentage",
			},
			[]string{"category"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path", "status"},
		),
	}

	registry.MustRegister(
		m.FetchTotal,
		m.FetchDuration,
		m.UsagePercent,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordFetch records one fetch attempt.
func (m *Metrics) RecordFetch(strategy, outcome string, durationSeconds float64) {
	m.FetchTotal.WithLabelValues(strategy, outcome).Inc()
	m.FetchDuration.WithLabelValues(strategy).Observe(durationSeconds)
}

// ObserveSnapshot sets the usage gauges from snap.
func (m *Metrics) ObserveSnapshot(snap *usage.Snapshot) {
	if snap == nil {
		return
	}
	m.UsagePercent.WithLabelValues(string(usage.CategorySession)).Set(snap.SessionPercentage)
	m.UsagePercent.WithLabelValues(string(usage.CategoryWeekly)).Set(snap.WeeklyPercentage)
	m.UsagePercent.WithLabelValues(string(usage.CategoryModel)).Set(snap.OpusWeeklyPercentage)
}
