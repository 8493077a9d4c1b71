package testutil

import (
	"time"

	"github.com/google/uuid"

	cmodels "proofbridge/internal/credential/models"
	id "proofbridge/pkg/domain"
)

// TestIDs provides deterministic session scopes for tests.
var TestIDs = struct {
	SessionID1 id.SessionID
	SessionID2 id.SessionID
}{
	SessionID1: id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000001")),
	SessionID2: id.SessionID(uuid.MustParse("eeee0000-0000-0000-0000-000000000002")),
}

// FixedIssuanceDate is the issuance date used by fixture credentials.
var FixedIssuanceDate = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// IdentityCredential returns a credential carrying name and address attributes.
func IdentityCredential(name string) cmodels.Credential {
	return cmodels.Credential{
		Subject: map[string]any{
			cmodels.AttrName:    name,
			cmodels.AttrAddress: "221B Baker Street",
			cmodels.AttrCity:    "London",
			cmodels.AttrZip:     "NW16XE",
			cmodels.AttrState:   "Greater London",
		},
		IssuanceDate: FixedIssuanceDate,
		Types:        []string{"VerifiableCredential", "AddressCredential"},
	}
}

// BiometricCredential returns a credential carrying a biometric enrollment id.
func BiometricCredential(enrollmentID string) cmodels.Credential {
	return cmodels.Credential{
		Subject:      map[string]any{cmodels.AttrBiometricEnrollmentID: enrollmentID},
		IssuanceDate: FixedIssuanceDate,
		Types:        []string{"VerifiableCredential", "BiometricCredential"},
	}
}

// BundleOf wraps credentials in a bundle.
func BundleOf(creds ...cmodels.Credential) *cmodels.Bundle {
	return &cmodels.Bundle{Credentials: creds}
}
