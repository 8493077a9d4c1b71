package reaper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"proofbridge/internal/flows"
	"proofbridge/internal/proof/metrics"
	pmodels "proofbridge/internal/proof/models"
	"proofbridge/internal/proof/session"
	"proofbridge/internal/proof/state"
	"proofbridge/pkg/testutil"
)

type pendingVerifier struct{}

func (pendingVerifier) CreateProofRequest(_ context.Context, req pmodels.ProofRequest) (*pmodels.CreatedRequest, error) {
	return &pmodels.CreatedRequest{RequestID: "req-" + req.TemplateID, QRPayload: "qr"}, nil
}

func (pendingVerifier) PollProofResult(context.Context, string) (*pmodels.PollResult, error) {
	return &pmodels.PollResult{Status: pmodels.PollPending}, nil
}

func TestRunOnceClosesIdleFlows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	store := state.NewInMemoryStore()
	registry := flows.NewRegistry(
		flows.Definitions(flows.Templates{Loan: "LOAN_PROOF", BankBio: "URBANSCAPE_BANKBIO"}),
		pendingVerifier{},
		store,
		nil,
		session.Config{PollInterval: time.Hour, Timeout: time.Hour},
		flows.WithClock(clock),
	)
	t.Cleanup(func() { registry.CloseAll(ctx) })

	_, _, err := registry.Open(ctx, flows.KindLoan, testutil.TestIDs.SessionID1)
	require.NoError(t, err)
	require.NoError(t, store.SetVerified(ctx, testutil.TestIDs.SessionID1, true))

	now = now.Add(20 * time.Minute)
	_, _, err = registry.Open(ctx, flows.KindApartment, testutil.TestIDs.SessionID2)
	require.NoError(t, err)

	m := metrics.New(prometheus.NewRegistry())
	r, err := New(registry,
		WithIdleTTL(15*time.Minute),
		WithClock(clock),
		WithMetrics(m),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	res, err := r.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, Result{Closed: 1, Remaining: 1}, res)
	require.Equal(t, 1.0, promtest.ToFloat64(m.FlowsReaped))
	require.Equal(t, 1.0, promtest.ToFloat64(m.OpenFlows))

	st, err := store.Get(ctx, testutil.TestIDs.SessionID1)
	require.NoError(t, err)
	require.False(t, st.Verified)

	_, err = registry.Get(testutil.TestIDs.SessionID2)
	require.NoError(t, err)
}

type failingRegistry struct {
	calls atomic.Int32
}

func (f *failingRegistry) CloseIdle(context.Context, time.Time) (int, error) {
	f.calls.Add(1)
	return 0, errors.New("redis unavailable")
}

func (f *failingRegistry) Len() int { return 4 }

func TestRunOnceReportsErrors(t *testing.T) {
	r, err := New(&failingRegistry{})
	require.NoError(t, err)

	res, err := r.RunOnce(context.Background())
	require.ErrorContains(t, err, "close idle flows")
	require.Equal(t, 4, res.Remaining)
}

func TestStartStopsOnCancel(t *testing.T) {
	reg := &failingRegistry{}
	r, err := New(reg,
		WithInterval(5*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool { return reg.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
