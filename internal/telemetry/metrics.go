package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baseplate/tracker/config"
)

// Metrics records resource operation outcomes. A disabled instance, and a
// nil *Metrics, accept every call and record nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	requests   *prometheus.CounterVec

	registry *prometheus.Registry
}

func NewMetrics(cfg config.MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "resource_operations_total",
				Help:      "Resource operations by resource, operation and outcome",
			},
			[]string{"resource", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "resource_operation_duration_seconds",
				Help:      "Duration of resource operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"resource", "operation"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
	}

	registry.MustRegister(m.operations, m.duration, m.requests)
	return m
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// ObserveOperation records one resource operation.
func (m *Metrics) ObserveOperation(resource, operation, outcome string, elapsed time.Duration) {
	if !m.enabled() {
		return
	}
	m.operations.WithLabelValues(resource, operation, outcome).Inc()
	m.duration.WithLabelValues(resource, operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRequest(method, route, status string) {
	if !m.enabled() {
		return
	}
	m.requests.WithLabelValues(method, route, status).Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
