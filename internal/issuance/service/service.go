// Package service runs the issuance pipeline: build a credential body, issue
// it at the issuance service exactly once per idempotency key, persist the
// record for wallet pickup and track revocation handles.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"proofbridge/internal/issuance/metrics"
	"proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	dErrors "proofbridge/pkg/domain-errors"
	"proofbridge/pkg/platform/sentinel"
	"proofbridge/pkg/platform/tracer"
	"proofbridge/pkg/platform/upstream"
)

// Builder turns a payload into a credential body. Implementations must be pure.
type Builder interface {
	Type() models.CredentialType
	Build(payload models.Payload) (models.Body, error)
}

// Issuer is the issuance service port.
type Issuer interface {
	IssueCredential(ctx context.Context, body models.Body, revocable bool, idempotencyKey string) (*models.IssuedResponse, error)
}

// RecordStore persists issued records. Save returns sentinel.ErrConflict for a
// duplicate idempotency key.
type RecordStore interface {
	Save(ctx context.Context, record models.IssuedCredentialRecord) error
	FindByIdempotencyKey(ctx context.Context, key string) (*models.IssuedCredentialRecord, error)
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]models.IssuedCredentialRecord, error)
}

// RevocationStore persists revocation handles. Save is an upsert.
type RevocationStore interface {
	Save(ctx context.Context, handle models.RevocationHandle) error
}

// LatestCache holds the latest revocable credential body per holder.
type LatestCache interface {
	Put(ctx context.Context, holder string, body json.RawMessage) error
	Get(ctx context.Context, holder string) (json.RawMessage, error)
}

// EventPublisher emits issuance domain events.
type EventPublisher interface {
	CredentialIssued(ctx context.Context, record models.IssuedCredentialRecord) error
}

// Service is the issuance pipeline.
type Service struct {
	issuer      Issuer
	records     RecordStore
	revocations RevocationStore
	latest      LatestCache
	events      EventPublisher
	builders    map[models.CredentialType]Builder

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time

	inflight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithLatestCache(c LatestCache) Option {
	return func(s *Service) {
		s.latest = c
	}
}

func WithEventPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.events = p
	}
}

// WithBuilders registers builders for IssueAll, keyed by their credential type.
func WithBuilders(builders ...Builder) Option {
	return func(s *Service) {
		for _, b := range builders {
			s.builders[b.Type()] = b
		}
	}
}

// WithClock overrides time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the issuance pipeline.
func New(issuer Issuer, records RecordStore, revocations RevocationStore, opts ...Option) *Service {
	s := &Service{
		issuer:      issuer,
		records:     records,
		revocations: revocations,
		builders:    make(map[models.CredentialType]Builder),
		logger:      slog.Default(),
		tracer:      tracer.NewNoop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type outcome struct {
	record models.IssuedCredentialRecord
	reused bool
}

// Issue builds and issues one credential.
//
// The payload must carry a biometric link; without one Issue fails with
// CodeMissingEvidence before the issuance service is called. A record already
// stored under the payload's idempotency key is returned without calling the
// service again, and concurrent duplicates share a single call.
func (s *Service) Issue(ctx context.Context, builder Builder, payload models.Payload, revocable bool) (*models.IssuedCredentialRecord, error) {
	out, err := s.issue(ctx, builder, payload, revocable)
	if err != nil {
		return nil, err
	}
	record := out.record
	return &record, nil
}

// IssueAll issues each request in order and stops at the first failure.
// Credentials issued before the failure are kept; there is no rollback.
// The returned results cover every attempted request, including the failed one.
func (s *Service) IssueAll(ctx context.Context, reqs []models.IssueRequest) ([]models.IssueResult, error) {
	results := make([]models.IssueResult, 0, len(reqs))
	for _, req := range reqs {
		builder, ok := s.builders[req.Type]
		if !ok {
			err := dErrors.New(dErrors.CodeInternal, "no builder registered for "+string(req.Type))
			results = append(results, models.IssueResult{Type: req.Type, Err: err})
			return results, err
		}

		out, err := s.issue(ctx, builder, req.Payload, req.Revocable)
		if err != nil {
			results = append(results, models.IssueResult{Type: req.Type, Err: err})
			return results, err
		}
		record := out.record
		results = append(results, models.IssueResult{Type: req.Type, Record: &record, Reused: out.reused})
	}
	return results, nil
}

// ListBySession returns the records issued in a session, oldest first.
func (s *Service) ListBySession(ctx context.Context, sessionID id.SessionID) ([]models.IssuedCredentialRecord, error) {
	records, err := s.records.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list issued credentials")
	}
	return records, nil
}

// Latest returns the latest revocable credential body cached for holder.
func (s *Service) Latest(ctx context.Context, holder string) (json.RawMessage, error) {
	if s.latest == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no credential cached for holder")
	}
	body, err := s.latest.Get(ctx, holder)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no credential cached for holder")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load latest credential")
	}
	return body, nil
}

func (s *Service) issue(ctx context.Context, builder Builder, payload models.Payload, revocable bool) (_ outcome, err error) {
	if builder == nil {
		return outcome{}, dErrors.New(dErrors.CodeInternal, "credential builder is required")
	}
	credType := builder.Type()

	if payload.Biometric == nil {
		s.metrics.RecordFailed(string(credType), "missing_evidence")
		s.logger.WarnContext(ctx, "issuance refused: biometric proof missing",
			"session_id", payload.SessionID.String(),
			"credential_type", string(credType),
		)
		return outcome{}, dErrors.New(dErrors.CodeMissingEvidence, "biometric proof missing")
	}
	if payload.SessionID.IsNil() {
		return outcome{}, dErrors.New(dErrors.CodeValidation, "session id is required")
	}

	body, err := builder.Build(payload)
	if err != nil {
		s.metrics.RecordFailed(string(credType), "validation")
		return outcome{}, dErrors.Wrap(err, dErrors.CodeValidation, "failed to build "+string(credType)+" credential")
	}
	key, err := idempotencyKey(payload, credType, body)
	if err != nil {
		return outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to derive idempotency key")
	}

	ctx, span := s.tracer.Start(ctx, tracer.SpanIssueCredential,
		tracer.String(tracer.AttrSessionID, payload.SessionID.String()),
		tracer.String(tracer.AttrCredentialType, string(credType)),
		tracer.Bool(tracer.AttrRevocable, revocable),
		tracer.String(tracer.AttrHolder, tracer.HashHolder(payload.Holder())),
	)
	defer func() { span.End(err) }()

	start := s.now()
	leader := false
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		leader = true
		return s.issueOnce(ctx, credType, body, payload, revocable, key)
	})
	if err != nil {
		return outcome{}, err
	}
	out := v.(outcome)
	if !leader {
		// Joined an in-flight call for the same key.
		out.reused = true
	}
	span.SetAttributes(tracer.Bool(tracer.AttrReused, out.reused))

	if out.reused {
		s.metrics.RecordReused(string(credType))
	} else {
		s.metrics.RecordIssued(string(credType), revocable, s.now().Sub(start))
	}
	return out, nil
}

// issueOnce runs under the singleflight key, so at most one call per key is in
// flight in this process. The unique key in the record store covers the rest.
func (s *Service) issueOnce(ctx context.Context, credType models.CredentialType, body models.Body, payload models.Payload, revocable bool, key string) (outcome, error) {
	existing, err := s.records.FindByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if err := s.ensureRevocationHandle(ctx, *existing); err != nil {
			return outcome{}, err
		}
		return outcome{record: *existing, reused: true}, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		s.metrics.RecordFailed(string(credType), "store")
		return outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up issued credential")
	}

	resp, err := s.callIssuer(ctx, credType, body, revocable, key)
	if err != nil {
		reason := "upstream"
		if upstream.IsMalformed(err) {
			reason = "malformed"
			s.logger.ErrorContext(ctx, "malformed issuance response",
				"session_id", payload.SessionID.String(),
				"credential_type", string(credType),
				"raw_payload", string(upstream.RawPayload(err)),
			)
		} else {
			s.logger.ErrorContext(ctx, "issuance service call failed",
				"session_id", payload.SessionID.String(),
				"credential_type", string(credType),
				"retryable", upstream.IsRetryable(err),
				"error", err,
			)
		}
		s.metrics.RecordFailed(string(credType), reason)
		return outcome{}, upstream.ToDomain(err, "failed to issue "+string(credType)+" credential")
	}

	record := models.IssuedCredentialRecord{
		ID:             id.NewCredentialID(),
		Type:           credType,
		SessionID:      payload.SessionID,
		Holder:         payload.Holder(),
		Body:           resp.Record,
		IsRevocable:    revocable,
		IdempotencyKey: key,
		IssuedAt:       s.now().UTC(),
	}
	if revocable {
		record.RevocationID = resp.RevocationID
	}

	if err := s.records.Save(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Another instance stored the same key first; the service
			// deduplicated on the Idempotency-Key header.
			winner, findErr := s.records.FindByIdempotencyKey(ctx, key)
			if findErr == nil {
				return outcome{record: *winner, reused: true}, nil
			}
		}
		s.metrics.RecordFailed(string(credType), "store")
		s.logger.ErrorContext(ctx, "issued credential could not be persisted",
			"session_id", payload.SessionID.String(),
			"credential_type", string(credType),
			"credential_id", record.ID.String(),
			"error", err,
		)
		return outcome{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist issued credential")
	}

	// The credential exists from here on, so the cache and event reflect it
	// even if the revocation handle write below fails.
	s.afterIssue(ctx, record)
	if err := s.ensureRevocationHandle(ctx, record); err != nil {
		return outcome{}, err
	}

	s.logger.InfoContext(ctx, "credential issued",
		"session_id", record.SessionID.String(),
		"credential_type", string(credType),
		"credential_id", record.ID.String(),
		"revocable", revocable,
	)
	return outcome{record: record}, nil
}

func (s *Service) callIssuer(ctx context.Context, credType models.CredentialType, body models.Body, revocable bool, key string) (_ *models.IssuedResponse, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssuerCall,
		tracer.String(tracer.AttrCredentialType, string(credType)),
	)
	defer func() { span.End(err) }()
	return s.issuer.IssueCredential(ctx, body, revocable, key)
}

// ensureRevocationHandle stores the handle of a revocable record. Save is an
// upsert, so a retry after a failed handle write completes it.
func (s *Service) ensureRevocationHandle(ctx context.Context, record models.IssuedCredentialRecord) error {
	if !record.IsRevocable {
		return nil
	}
	if record.RevocationID == "" {
		s.logger.WarnContext(ctx, "revocable credential issued without revocation id",
			"session_id", record.SessionID.String(),
			"credential_id", record.ID.String(),
		)
		return nil
	}
	err := s.revocations.Save(ctx, models.RevocationHandle{
		RevocationID: record.RevocationID,
		CredentialID: record.ID,
		Type:         record.Type,
		Holder:       record.Holder,
		CreatedAt:    record.IssuedAt,
	})
	if err != nil {
		s.metrics.RecordFailed(string(record.Type), "store")
		s.logger.ErrorContext(ctx, "revocation handle could not be persisted",
			"credential_id", record.ID.String(),
			"revocation_id", record.RevocationID,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist revocation handle")
	}
	return nil
}

// afterIssue updates the latest-credential cache and emits the domain event.
// Neither affects the outcome of the issuance.
func (s *Service) afterIssue(ctx context.Context, record models.IssuedCredentialRecord) {
	if s.latest != nil && record.IsRevocable && record.Holder != "" {
		if err := s.latest.Put(ctx, record.Holder, record.Body); err != nil {
			s.logger.WarnContext(ctx, "failed to cache latest credential",
				"credential_id", record.ID.String(),
				"error", err,
			)
		}
	}
	if s.events != nil {
		if err := s.events.CredentialIssued(ctx, record); err != nil {
			s.logger.WarnContext(ctx, "failed to publish credential issued event",
				"credential_id", record.ID.String(),
				"error", err,
			)
		}
	}
}

// idempotencyKey scopes a key to the session and credential type. A caller
// token replaces the body digest when present.
func idempotencyKey(payload models.Payload, credType models.CredentialType, body models.Body) (string, error) {
	h := sha256.New()
	h.Write([]byte(payload.SessionID.String()))
	h.Write([]byte{0})
	h.Write([]byte(credType))
	h.Write([]byte{0})
	if payload.IdempotencyToken != "" {
		h.Write([]byte("token:" + payload.IdempotencyToken))
	} else {
		// encoding/json sorts map keys, so equal bodies encode identically.
		canonical, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		h.Write(canonical)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
