package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordIssued("CreditScore", true, 120*time.Millisecond)
	m.RecordReused("CreditScore")
	m.RecordFailed("BankIdentity", "missing_evidence")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Issued.WithLabelValues("CreditScore", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reused.WithLabelValues("CreditScore")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed.WithLabelValues("BankIdentity", "missing_evidence")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordIssued("x", false, time.Second)
		m.RecordReused("x")
		m.RecordFailed("x", "y")
	})
}
