// Package reaper closes flows that nobody has touched for a while, so their
// poll loops and state scopes do not outlive the page that opened them.
package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proofbridge/internal/proof/metrics"
)

// FlowRegistry exposes idle flow teardown.
type FlowRegistry interface {
	CloseIdle(ctx context.Context, cutoff time.Time) (int, error)
	Len() int
}

// Result summarizes one reaper run.
type Result struct {
	Closed    int
	Remaining int
}

// Reaper periodically closes idle flows.
type Reaper struct {
	flows    FlowRegistry
	interval time.Duration
	idleTTL  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithInterval overrides the run interval when greater than zero.
func WithInterval(interval time.Duration) Option {
	return func(r *Reaper) {
		if interval > 0 {
			r.interval = interval
		}
	}
}

// WithIdleTTL overrides how long a flow may sit untouched when greater than zero.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Reaper) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reaper) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reaper) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reaper) {
		r.now = now
	}
}

// New constructs a Reaper with defaults of a one minute interval and a
// fifteen minute idle TTL.
func New(flows FlowRegistry, opts ...Option) (*Reaper, error) {
	if flows == nil {
		return nil, fmt.Errorf("flow registry is required")
	}
	r := &Reaper{
		flows:    flows,
		interval: time.Minute,
		idleTTL:  15 * time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Start runs the reaper until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.ErrorContext(ctx, "flow reaper failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce closes every flow idle for longer than the TTL.
func (r *Reaper) RunOnce(ctx context.Context) (Result, error) {
	cutoff := r.now().Add(-r.idleTTL)
	closed, err := r.flows.CloseIdle(ctx, cutoff)
	res := Result{Closed: closed, Remaining: r.flows.Len()}
	r.metrics.RecordReap(res.Closed, res.Remaining)
	if err != nil {
		return res, fmt.Errorf("close idle flows: %w", err)
	}
	if closed > 0 {
		r.logger.InfoContext(ctx, "reaped idle flows", "closed", closed, "remaining", res.Remaining)
	}
	return res, nil
}
