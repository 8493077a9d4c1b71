// Package metrics provides Prometheus metrics for proof sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains proof session metrics.
type Metrics struct {
	SessionsStarted     *prometheus.CounterVec // by template
	SessionOutcomes     *prometheus.CounterVec // terminal status by template
	Polls               *prometheus.CounterVec // poll attempts by result
	PollDurationSeconds prometheus.Histogram   // verification service round trip
	ActiveSessions      prometheus.Gauge       // poll loops currently running
	StoreWrites         *prometheus.CounterVec // state store writes by field and result
	FlowsReaped         prometheus.Counter
	OpenFlows           prometheus.Gauge
}

// New registers proof metrics with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_proof_sessions_started_total",
			Help: "Total number of proof sessions started by template",
		}, []string{"template"}),

		SessionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_proof_session_outcomes_total",
			Help: "Terminal proof session outcomes by template and status",
		}, []string{"template", "status"}),

		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_proof_polls_total",
			Help: "Verification service polls by result",
		}, []string{"result"}),

		PollDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "proofbridge_proof_poll_duration_seconds",
			Help:    "Duration of verification service polls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proofbridge_proof_sessions_active",
			Help: "Current number of running poll loops",
		}),

		StoreWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proofbridge_verification_state_writes_total",
			Help: "Verification state store writes by field and result",
		}, []string{"field", "result"}),

		FlowsReaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "proofbridge_flows_reaped_total",
			Help: "Flows closed by the reaper after sitting idle",
		}),

		OpenFlows: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proofbridge_flows_open",
			Help: "Flows currently held by the registry",
		}),
	}
}

func (m *Metrics) RecordStarted(template string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(template).Inc()
	m.ActiveSessions.Inc()
}

// RecordOutcome records a terminal status; idle (cancelled) sessions count too.
func (m *Metrics) RecordOutcome(template, status string) {
	if m == nil {
		return
	}
	m.SessionOutcomes.WithLabelValues(template, status).Inc()
}

func (m *Metrics) RecordLoopExit() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) RecordPoll(result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(result).Inc()
	m.PollDurationSeconds.Observe(durationSeconds)
}

func (m *Metrics) RecordStoreWrite(field string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreWrites.WithLabelValues(field, result).Inc()
}

// RecordReap records one reaper run: how many flows it closed and how many remain.
func (m *Metrics) RecordReap(closed, open int) {
	if m == nil {
		return
	}
	m.FlowsReaped.Add(float64(closed))
	m.OpenFlows.Set(float64(open))
}
