// Package metrics provides Prometheus metrics for credential issuance.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains issuance metrics.
type Metrics struct {
	Issued          *prometheus.CounterVec
	Failed          *prometheus.CounterVec
	Reused          *prometheus.CounterVec
	DurationSeconds *prometheus.HistogramVec
}

// New registers issuance metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Issued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_credentials_issued_total",
			Help: "Credentials newly issued by type and revocability",
		}, []string{"type", "revocable"}),
		Failed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_credential_issuance_failures_total",
			Help: "Failed issuance attempts by type and reason",
		}, []string{"type", "reason"}),
		Reused: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_credential_issuance_reused_total",
			Help: "Issuance requests answered from an existing record",
		}, []string{"type"}),
		DurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proofbridge_credential_issuance_duration_seconds",
			Help:    "End-to-end issuance duration by type",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"type"}),
	}
}

func (m *Metrics) RecordIssued(credType string, revocable bool, d time.Duration) {
	if m == nil {
		return
	}
	m.Issued.WithLabelValues(credType, strconv.FormatBool(revocable)).Inc()
	m.DurationSeconds.WithLabelValues(credType).Observe(d.Seconds())
}

func (m *Metrics) RecordReused(credType string) {
	if m == nil {
		return
	}
	m.Reused.WithLabelValues(credType).Inc()
}

func (m *Metrics) RecordFailed(credType, reason string) {
	if m == nil {
		return
	}
	m.Failed.WithLabelValues(credType, reason).Inc()
}
