// Package models defines the issuance pipeline's payloads, credential bodies
// and persisted records.
package models

import (
	"encoding/json"
	"strings"
	"time"

	cmodels "proofbridge/internal/credential/models"
	id "proofbridge/pkg/domain"
)

// CredentialType names a credential the relying party can issue.
type CredentialType string

const (
	TypeBankIdentity CredentialType = "BankIdentity"
	TypeCreditScore  CredentialType = "CreditScore"
)

// Address is the receiver's postal address as submitted with the form.
type Address struct {
	Street  string `json:"address"`
	City    string `json:"city"`
	ZipCode string `json:"zip"`
	State   string `json:"state"`
}

// Payload is the input to a credential builder. Biometric must be set for the
// pipeline to call the issuance service.
type Payload struct {
	SessionID       id.SessionID
	ReceiverDID     string
	RecipientEmail  string
	ReceiverName    string
	ReceiverAddress Address
	CreditScore     *int
	Biometric       *cmodels.BiometricLink

	// IdempotencyToken overrides the derived idempotency key when set.
	IdempotencyToken string
}

// Holder identifies who the credential is issued to: the DID when known,
// otherwise the recipient email.
func (p Payload) Holder() string {
	if did := strings.TrimSpace(p.ReceiverDID); did != "" {
		return did
	}
	return strings.ToLower(strings.TrimSpace(p.RecipientEmail))
}

// Body is the unsigned credential content handed to the issuance service.
type Body struct {
	Type   CredentialType `json:"type"`
	Claims map[string]any `json:"claims"`
}

// IssuedCredentialRecord is what the wallet picks up. Body is the opaque
// signed payload returned by the issuance service.
type IssuedCredentialRecord struct {
	ID             id.CredentialID `json:"id"`
	Type           CredentialType  `json:"type"`
	SessionID      id.SessionID    `json:"session_id"`
	Holder         string          `json:"holder"`
	Body           json.RawMessage `json:"body"`
	IsRevocable    bool            `json:"is_revocable"`
	RevocationID   string          `json:"revocation_id,omitempty"`
	IdempotencyKey string          `json:"-"`
	IssuedAt       time.Time       `json:"issued_at"`
}

// RevocationHandle lets a revocable credential be revoked later.
type RevocationHandle struct {
	RevocationID string
	CredentialID id.CredentialID
	Type         CredentialType
	Holder       string
	CreatedAt    time.Time
}

// IssuedResponse is the issuance service's answer.
type IssuedResponse struct {
	Record       json.RawMessage
	RevocationID string
}

// IssueRequest is one entry of a multi-type issuance.
type IssueRequest struct {
	Type      CredentialType
	Payload   Payload
	Revocable bool
}

// IssueResult reports the outcome for one credential type.
type IssueResult struct {
	Type   CredentialType
	Record *IssuedCredentialRecord
	Reused bool
	Err    error
}
