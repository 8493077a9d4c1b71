// Package tracer provides a lightweight tracing abstraction for proof sessions
// and credential issuance.
//
// Callers depend on the Tracer interface rather than OpenTelemetry directly.
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	//
	// Example:
	//   ctx, span := tracer.Start(ctx, tracer.SpanSessionStart,
	//       tracer.String(tracer.AttrTemplateID, req.TemplateID),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashHolder returns a short SHA-256 digest of a holder identifier (DID or email)
// so traces can be correlated without carrying the raw value.
func HashHolder(holder string) string {
	if holder == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(holder))
	return hex.EncodeToString(hash[:8])
}

// Span names.
const (
	SpanSessionStart    = "proof.session.start"
	SpanSessionPoll     = "proof.session.poll"
	SpanIssueCredential = "issuance.issue"
	SpanIssuerCall      = "issuance.issuer.call"
)

// Attribute keys.
const (
	AttrSessionID      = "session_id"
	AttrTemplateID     = "template_id"
	AttrRequestID      = "verifier.request_id"
	AttrPollStatus     = "poll.status"
	AttrCredentialType = "credential.type"
	AttrRevocable      = "credential.revocable"
	AttrHolder         = "holder"
	AttrReused         = "idempotent_reuse"
)
