package handler

import (
	"strings"

	id "proofbridge/pkg/domain"
	"proofbridge/pkg/validation"
)

// StartSessionRequest opens a flow. SessionID is optional; an empty value
// opens a fresh scope.
type StartSessionRequest struct {
	Flow      string `json:"flow" validate:"required,oneof=loan loan_credit_score apartment bank_account"`
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
}

func (r *StartSessionRequest) Normalize() {
	if r == nil {
		return
	}
	r.Flow = strings.ToLower(strings.TrimSpace(r.Flow))
	r.SessionID = strings.TrimSpace(r.SessionID)
}

func (r *StartSessionRequest) Validate() error {
	return validation.Validate(r)
}

// ParsedSessionID returns the requested scope, or the nil id when none was given.
func (r *StartSessionRequest) ParsedSessionID() (id.SessionID, error) {
	if r.SessionID == "" {
		return id.SessionID{}, nil
	}
	return id.ParseSessionID(r.SessionID)
}
