// Package models defines the credential bundle returned by a verified proof
// session and the values derived from it.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// Subject attribute names the engine looks for. Presence, not schema, decides relevance.
const (
	AttrName                  = "name"
	AttrAddress               = "address"
	AttrCity                  = "city"
	AttrZip                   = "zip"
	AttrState                 = "state"
	AttrBiometricEnrollmentID = "biometric_enrollment_id"
	AttrCreditScore           = "credit_score"
)

// Kind tags a credential by the capability its subject attributes expose.
type Kind string

const (
	KindIdentity    Kind = "identity"
	KindBiometric   Kind = "biometric"
	KindCreditScore Kind = "credit_score"
	KindUnknown     Kind = "unknown"
)

// Credential is one untrusted credential from a verification bundle.
type Credential struct {
	Subject      map[string]any `json:"credentialSubject"`
	IssuanceDate time.Time      `json:"issuanceDate"`
	Types        []string       `json:"type,omitempty"`
}

// Supports reports whether the subject carries a non-null value for attribute.
func (c Credential) Supports(attribute string) bool {
	if c.Subject == nil {
		return false
	}
	v, ok := c.Subject[attribute]
	return ok && v != nil
}

// Kind classifies the credential. Biometric wins over credit score, which wins over identity.
func (c Credential) Kind() Kind {
	switch {
	case c.Supports(AttrBiometricEnrollmentID):
		return KindBiometric
	case c.Supports(AttrCreditScore):
		return KindCreditScore
	case c.Supports(AttrAddress), c.Supports(AttrName):
		return KindIdentity
	default:
		return KindUnknown
	}
}

// Attribute returns the attribute normalised to text. Numbers decoded from JSON
// (a zip code of 94107 arrives as float64) render without exponent or trailing zeros.
func (c Credential) Attribute(attribute string) (string, bool) {
	if !c.Supports(attribute) {
		return "", false
	}
	switch v := c.Subject[attribute].(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// Bundle is the credential set produced by one verification event.
type Bundle struct {
	Credentials []Credential `json:"credentials"`
}

// Len tolerates a nil bundle.
func (b *Bundle) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Credentials)
}

// Field is one applicant form value. IsVerified is true only when Text came
// from a credential in the current bundle.
type Field struct {
	Text       string `json:"text"`
	IsVerified bool   `json:"is_verified"`
}

// ApplicantFieldSet is derived from a bundle and rebuilt on every extraction.
type ApplicantFieldSet struct {
	FirstName     Field `json:"first_name"`
	LastName      Field `json:"last_name"`
	StreetAddress Field `json:"street_address"`
	City          Field `json:"city"`
	ZipCode       Field `json:"zip_code"`
	State         Field `json:"state"`
}

// BiometricLink ties an issued credential to the biometric proof that unlocked it.
type BiometricLink struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created"`
}
