// Package metrics holds process-wide HTTP metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds HTTP transport metrics.
type Metrics struct {
	Requests        *prometheus.CounterVec
	EndpointLatency *prometheus.HistogramVec
}

// New registers HTTP metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		EndpointLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proofbridge_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, status).Inc()
	m.EndpointLatency.WithLabelValues(route).Observe(d.Seconds())
}
