// Package metrics holds the Prometheus collectors shared by both services.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xks"

// Metrics is a per-process collector set.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	remoteDuration  *prometheus.HistogramVec
	partials        *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry, along with the Go
// runtime and process collectors.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()
	register := registry.MustRegister

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "Cryptographic operations by operation and outcome",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"operation", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "request_duration_seconds",
			Help:        "Latency of cryptographic operations",
			ConstLabels: prometheus.Labels{"service": service},
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),
		remoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "remote_partial_duration_seconds",
			Help:        "Latency of partial computations requested from remote participants",
			ConstLabels: prometheus.Labels{"service": service},
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"share_index", "outcome"}),
		partials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "partials_total",
			Help:        "Partial computations served by outcome",
			ConstLabels: prometheus.Labels{"service": service},
		}, []string{"outcome"}),
	}

	register(m.requests)
	register(m.requestDuration)
	register(m.remoteDuration)
	register(m.partials)
	register(collectors.NewGoCollector())
	register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// ObserveRequest records one Encrypt or Decrypt.
func (m *Metrics) ObserveRequest(operation, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(operation, outcome).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveRemote records one call to a remote participant.
func (m *Metrics) ObserveRemote(shareIndex, outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(shareIndex, outcome).Observe(time.Since(started).Seconds())
}

// ObservePartial records one served partial computation.
func (m *Metrics) ObservePartial(outcome string) {
	if m == nil {
		return
	}
	m.partials.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
