// Package models defines proof sessions, the requests that start them and the
// verification state they publish.
package models

import (
	"strings"
	"time"

	cmodels "proofbridge/internal/credential/models"
	id "proofbridge/pkg/domain"
	dErrors "proofbridge/pkg/domain-errors"
)

// Status is the lifecycle of a proof session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusExpired  Status = "expired"
	StatusFailed   Status = "failed"
)

// IsTerminal reports whether no further transition happens without a new Start.
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusExpired || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// ProofRequest describes what the wallet is asked to prove. Immutable once built.
type ProofRequest struct {
	TemplateID          string
	QRText              string
	QRTextAfter         string
	FilteredCredentials []string
	Required            bool
}

// Validate checks the request before it reaches the verification service.
func (r ProofRequest) Validate() error {
	if strings.TrimSpace(r.TemplateID) == "" {
		return dErrors.New(dErrors.CodeValidation, "proof template id is required")
	}
	for _, c := range r.FilteredCredentials {
		if strings.TrimSpace(c) == "" {
			return dErrors.New(dErrors.CodeValidation, "filtered credential names must not be blank")
		}
	}
	return nil
}

// Session is a point-in-time copy of a controller's proof session.
type Session struct {
	ID            id.SessionID
	Status        Status
	Request       ProofRequest
	RequestID     string
	QRPayload     string
	RetrievedData *cmodels.Bundle
	StartedAt     time.Time
	FinishedAt    time.Time
	Err           string
}

// VerificationState is what a session scope exposes to flows.
type VerificationState struct {
	Verified      bool            `json:"verified"`
	RetrievedData *cmodels.Bundle `json:"retrieved_data,omitempty"`
}

// CreatedRequest is the verification service's answer to a new proof request.
type CreatedRequest struct {
	RequestID string
	QRPayload string
}

// PollStatus is the verification service's view of a proof request.
type PollStatus string

const (
	PollPending  PollStatus = "pending"
	PollVerified PollStatus = "verified"
	PollFailed   PollStatus = "failed"
)

// PollResult carries the bundle once verified, plus the raw payload for diagnostics.
type PollResult struct {
	Status PollStatus
	Bundle *cmodels.Bundle
	Raw    []byte
}
