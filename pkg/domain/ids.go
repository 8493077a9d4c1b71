// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "proofbridge/pkg/domain-errors"
)

// SessionID scopes one page context: its proof session controller and its
// slice of the verification state store.
type SessionID uuid.UUID

// CredentialID is the prefixed identifier of an issued credential record.
type CredentialID string

const credentialIDPrefix = "cred_"

// NewSessionID returns a random session scope.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// NewCredentialID generates a new credential ID with a stable prefix.
func NewCredentialID() CredentialID {
	return CredentialID(credentialIDPrefix + uuid.NewString())
}

// ParseSessionID validates a session ID at trust boundaries (handlers, API inputs).
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session ID cannot be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid session ID format")
	}
	if parsed == uuid.Nil {
		return SessionID{}, dErrors.New(dErrors.CodeInvalidInput, "session ID cannot be nil")
	}
	return SessionID(parsed), nil
}

// ParseCredentialID validates and parses a credential ID string.
func ParseCredentialID(s string) (CredentialID, error) {
	if strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ID cannot be empty")
	}
	if !strings.HasPrefix(s, credentialIDPrefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "credential ID must start with "+credentialIDPrefix)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(s, credentialIDPrefix)); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid credential ID format")
	}
	return CredentialID(s), nil
}

func (id SessionID) String() string    { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return string(id) }

func (id SessionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return id == "" }

// MarshalText renders the canonical UUID form in JSON and logs.
func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
