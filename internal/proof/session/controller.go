// Package session runs proof sessions: it creates a proof request at the
// verification service, polls it on a fixed cadence and publishes the verified
// bundle into the session's verification state scope.
//
// A Controller owns exactly one session at a time. Start is idempotent per
// template while pending, and a new template cancels the running poll loop
// before the next one begins, so a controller never runs two loops.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/proof/metrics"
	"proofbridge/internal/proof/models"
	id "proofbridge/pkg/domain"
	"proofbridge/pkg/platform/tracer"
	"proofbridge/pkg/platform/upstream"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 5 * time.Minute
)

// Verifier is the verification service port.
type Verifier interface {
	CreateProofRequest(ctx context.Context, req models.ProofRequest) (*models.CreatedRequest, error)
	PollProofResult(ctx context.Context, requestID string) (*models.PollResult, error)
}

// StateWriter is the part of the verification state store a controller writes to.
type StateWriter interface {
	SetVerified(ctx context.Context, sessionID id.SessionID, verified bool) error
	SetRetrievedData(ctx context.Context, sessionID id.SessionID, bundle *cmodels.Bundle) error
}

// Config controls poll cadence and the total polling deadline.
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Controller drives the proof session of one page context.
type Controller struct {
	sessionID id.SessionID
	verifier  Verifier
	store     StateWriter
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
	now       func() time.Time

	// startMu serializes Start, Cancel and Reset so loops never overlap.
	startMu sync.Mutex

	mu      sync.RWMutex
	session models.Session
	active  *Handle
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// New creates an idle controller bound to sessionID's state scope.
func New(sessionID id.SessionID, verifier Verifier, store StateWriter, cfg Config, opts ...Option) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Controller{
		sessionID: sessionID,
		verifier:  verifier,
		store:     store,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    tracer.NewNoop(),
		now:       time.Now,
		session:   models.Session{ID: sessionID, Status: models.StatusIdle},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the scope this controller publishes into.
func (c *Controller) SessionID() id.SessionID {
	return c.sessionID
}

// Start creates a proof request and begins polling it.
//
// While a session for the same template is pending, the existing handle is
// returned and no second request is created. A different template, or a
// terminal session, is cancelled first and a fresh request is created.
//
// The create call is synchronous: on failure the session is failed, the error
// is returned and the caller may Start again. The poll loop is detached from
// ctx's cancellation and only stops on Cancel, Reset, a terminal result or the
// deadline.
func (c *Controller) Start(ctx context.Context, req models.ProofRequest) (_ *Handle, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	if h := c.currentHandle(); h != nil {
		if h.templateID == req.TemplateID && h.Status() == models.StatusPending {
			return h, nil
		}
		c.stop(h)
	}

	ctx, span := c.tracer.Start(ctx, tracer.SpanSessionStart,
		tracer.String(tracer.AttrSessionID, c.sessionID.String()),
		tracer.String(tracer.AttrTemplateID, req.TemplateID),
	)
	defer func() { span.End(err) }()

	startedAt := c.now()
	created, err := c.verifier.CreateProofRequest(ctx, req)
	if err != nil {
		c.mu.Lock()
		c.session = models.Session{
			ID:         c.sessionID,
			Status:     models.StatusFailed,
			Request:    req,
			StartedAt:  startedAt,
			FinishedAt: c.now(),
			Err:        err.Error(),
		}
		c.mu.Unlock()
		c.metrics.RecordOutcome(req.TemplateID, string(models.StatusFailed))
		c.logger.WarnContext(ctx, "proof request creation failed",
			"session_id", c.sessionID.String(),
			"template_id", req.TemplateID,
			"retryable", upstream.IsRetryable(err),
			"error", err,
		)
		return nil, upstream.ToDomain(err, "failed to create proof request")
	}
	span.SetAttributes(tracer.String(tracer.AttrRequestID, created.RequestID))

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		controller: c,
		sessionID:  c.sessionID,
		templateID: req.TemplateID,
		requestID:  created.RequestID,
		qrPayload:  created.QRPayload,
		status:     models.StatusPending,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	c.mu.Lock()
	c.active = h
	c.session = models.Session{
		ID:        c.sessionID,
		Status:    models.StatusPending,
		Request:   req,
		RequestID: created.RequestID,
		QRPayload: created.QRPayload,
		StartedAt: startedAt,
	}
	c.mu.Unlock()

	c.metrics.RecordStarted(req.TemplateID)
	c.logger.InfoContext(ctx, "proof session started",
		"session_id", c.sessionID.String(),
		"template_id", req.TemplateID,
		"request_id", created.RequestID,
	)

	go c.pollLoop(loopCtx, h, startedAt.Add(c.cfg.Timeout))
	return h, nil
}

// Cancel stops polling immediately. A pending session returns to idle;
// terminal sessions keep their status. Safe to call in any state.
func (c *Controller) Cancel() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if h := c.currentHandle(); h != nil {
		c.stop(h)
	}
}

// Reset cancels any running session and returns the controller to idle with
// no retrieved data. The verification state scope is left untouched.
func (c *Controller) Reset() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	if h := c.currentHandle(); h != nil {
		c.stop(h)
	}
	c.mu.Lock()
	c.session = models.Session{ID: c.sessionID, Status: models.StatusIdle}
	c.mu.Unlock()
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Status returns the current session status.
func (c *Controller) Status() models.Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Status
}

// Wait blocks until the running poll loop exits or ctx is done, then returns
// the session snapshot.
func (c *Controller) Wait(ctx context.Context) (models.Session, error) {
	h := c.currentHandle()
	if h == nil {
		return c.Snapshot(), nil
	}
	select {
	case <-h.done:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

func (c *Controller) currentHandle() *Handle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// stop cancels h and waits for its loop to exit, so no store write from h
// happens after stop returns. Callers hold startMu.
func (c *Controller) stop(h *Handle) {
	h.cancel()
	<-h.done

	c.mu.Lock()
	defer c.mu.Unlock()
	if h.status == models.StatusPending {
		h.status = models.StatusIdle
		if c.active == h {
			c.session.Status = models.StatusIdle
			c.session.FinishedAt = c.now()
		}
		c.metrics.RecordOutcome(h.templateID, string(models.StatusIdle))
	}
	if c.active == h {
		c.active = nil
	}
}

func (c *Controller) pollLoop(ctx context.Context, h *Handle, deadline time.Time) {
	defer close(h.done)
	defer c.metrics.RecordLoopExit()

	pollCtx, cancelDeadline := context.WithDeadline(ctx, deadline)
	defer cancelDeadline()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollCtx.Done():
			// pollCtx derives from ctx, so a cancel also lands here.
			if ctx.Err() == nil {
				c.expire(ctx, h)
			}
			return
		case <-ticker.C:
			// Both channels may be ready at once; never poll past the deadline.
			if pollCtx.Err() != nil {
				if ctx.Err() == nil {
					c.expire(ctx, h)
				}
				return
			}
			if done := c.poll(pollCtx, h); done {
				return
			}
		}
	}
}

// poll performs one sequential poll and reports whether the session reached a
// terminal state.
func (c *Controller) poll(ctx context.Context, h *Handle) bool {
	ctx, span := c.tracer.Start(ctx, tracer.SpanSessionPoll,
		tracer.String(tracer.AttrSessionID, c.sessionID.String()),
		tracer.String(tracer.AttrRequestID, h.requestID),
	)
	start := time.Now()
	result, err := c.verifier.PollProofResult(ctx, h.requestID)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.End(err)
		return c.handlePollError(ctx, h, err, elapsed)
	}
	span.SetAttributes(tracer.String(tracer.AttrPollStatus, string(result.Status)))
	span.End(nil)
	c.metrics.RecordPoll(string(result.Status), elapsed)

	switch result.Status {
	case models.PollPending:
		return false
	case models.PollFailed:
		c.logger.WarnContext(ctx, "proof request rejected by verification service",
			"session_id", c.sessionID.String(),
			"request_id", h.requestID,
		)
		c.finish(h, models.StatusFailed, nil, "verification rejected")
		return true
	case models.PollVerified:
		if result.Bundle == nil {
			c.logger.ErrorContext(ctx, "verified proof result without bundle",
				"session_id", c.sessionID.String(),
				"request_id", h.requestID,
				"raw_payload", string(result.Raw),
			)
			c.finish(h, models.StatusFailed, nil, "malformed verification payload")
			return true
		}
		return c.publish(ctx, h, result.Bundle)
	default:
		c.logger.ErrorContext(ctx, "unexpected proof status",
			"session_id", c.sessionID.String(),
			"status", string(result.Status),
			"raw_payload", string(result.Raw),
		)
		c.finish(h, models.StatusFailed, nil, "malformed verification payload")
		return true
	}
}

func (c *Controller) handlePollError(ctx context.Context, h *Handle, err error, elapsed float64) bool {
	// Cancellation and the deadline are handled by the loop itself.
	if ctx.Err() != nil {
		return false
	}
	switch {
	case upstream.IsMalformed(err):
		c.metrics.RecordPoll("malformed", elapsed)
		c.logger.ErrorContext(ctx, "malformed verification payload",
			"session_id", c.sessionID.String(),
			"request_id", h.requestID,
			"raw_payload", string(upstream.RawPayload(err)),
			"error", err,
		)
		c.finish(h, models.StatusFailed, nil, "malformed verification payload")
		return true
	case upstream.IsRetryable(err):
		c.metrics.RecordPoll("transient_error", elapsed)
		c.logger.WarnContext(ctx, "proof poll failed, retrying on next tick",
			"session_id", c.sessionID.String(),
			"request_id", h.requestID,
			"error", err,
		)
		return false
	default:
		c.metrics.RecordPoll("error", elapsed)
		c.logger.ErrorContext(ctx, "proof poll failed",
			"session_id", c.sessionID.String(),
			"request_id", h.requestID,
			"category", string(upstream.CategoryOf(err)),
			"error", err,
		)
		c.finish(h, models.StatusFailed, nil, err.Error())
		return true
	}
}

// publish writes the bundle then the verified flag. A failed store write keeps
// the session pending so the next tick retries it.
func (c *Controller) publish(ctx context.Context, h *Handle, bundle *cmodels.Bundle) bool {
	err := c.store.SetRetrievedData(ctx, c.sessionID, bundle)
	c.metrics.RecordStoreWrite("retrieved_data", err)
	if err == nil {
		err = c.store.SetVerified(ctx, c.sessionID, true)
		c.metrics.RecordStoreWrite("verified", err)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		c.logger.ErrorContext(ctx, "failed to publish verification state",
			"session_id", c.sessionID.String(),
			"error", err,
		)
		return false
	}

	c.finish(h, models.StatusVerified, bundle, "")
	c.logger.InfoContext(ctx, "proof session verified",
		"session_id", c.sessionID.String(),
		"request_id", h.requestID,
		"credentials", bundle.Len(),
	)
	return true
}

func (c *Controller) expire(ctx context.Context, h *Handle) {
	if c.finish(h, models.StatusExpired, nil, "") {
		c.logger.InfoContext(ctx, "proof session expired",
			"session_id", c.sessionID.String(),
			"request_id", h.requestID,
		)
	}
}

// finish moves a pending handle to a terminal status exactly once.
func (c *Controller) finish(h *Handle, status models.Status, bundle *cmodels.Bundle, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h.status != models.StatusPending {
		return false
	}
	h.status = status
	if c.active == h {
		c.session.Status = status
		c.session.FinishedAt = c.now()
		c.session.RetrievedData = bundle
		c.session.Err = reason
	}
	c.metrics.RecordOutcome(h.templateID, string(status))
	return true
}
