// Package extract derives form values and biometric links from a credential
// bundle. Every function is pure: repeated calls on the same input return
// identical output.
package extract

import (
	"strings"

	"proofbridge/internal/credential/models"
)

// FindBySubjectAttribute returns the first credential, in bundle order, whose
// subject carries key. A nil or empty bundle yields no match.
func FindBySubjectAttribute(bundle *models.Bundle, key string) (*models.Credential, bool) {
	if bundle == nil {
		return nil, false
	}
	for i := range bundle.Credentials {
		if bundle.Credentials[i].Supports(key) {
			return &bundle.Credentials[i], true
		}
	}
	return nil, false
}

// ExtractApplicant maps an identity credential onto the applicant form.
// The name is split on whitespace: the first word is the first name and the
// remaining words form the last name, which is empty for single-word names.
func ExtractApplicant(cred *models.Credential) models.ApplicantFieldSet {
	var fields models.ApplicantFieldSet
	if cred == nil {
		return fields
	}

	if name, ok := cred.Attribute(models.AttrName); ok {
		parts := strings.Fields(name)
		if len(parts) > 0 {
			fields.FirstName = verified(parts[0])
		}
		if len(parts) > 1 {
			fields.LastName = verified(strings.Join(parts[1:], " "))
		}
	}
	fields.StreetAddress = attributeField(cred, models.AttrAddress)
	fields.City = attributeField(cred, models.AttrCity)
	fields.ZipCode = attributeField(cred, models.AttrZip)
	fields.State = attributeField(cred, models.AttrState)
	return fields
}

// ApplicantFromBundle locates the first credential carrying an address and
// extracts the applicant from it.
func ApplicantFromBundle(bundle *models.Bundle) (models.ApplicantFieldSet, bool) {
	cred, ok := FindBySubjectAttribute(bundle, models.AttrAddress)
	if !ok {
		return models.ApplicantFieldSet{}, false
	}
	return ExtractApplicant(cred), true
}

// ExtractBiometric maps biometric_enrollment_id to the link id and the
// credential's issuance date to its creation time.
func ExtractBiometric(cred *models.Credential) (*models.BiometricLink, bool) {
	if cred == nil {
		return nil, false
	}
	enrollmentID, ok := cred.Attribute(models.AttrBiometricEnrollmentID)
	if !ok || strings.TrimSpace(enrollmentID) == "" {
		return nil, false
	}
	return &models.BiometricLink{
		ID:        enrollmentID,
		CreatedAt: cred.IssuanceDate,
	}, true
}

// BiometricFromBundle finds the first biometric credential and extracts its link.
func BiometricFromBundle(bundle *models.Bundle) (*models.BiometricLink, bool) {
	cred, ok := FindBySubjectAttribute(bundle, models.AttrBiometricEnrollmentID)
	if !ok {
		return nil, false
	}
	return ExtractBiometric(cred)
}

func attributeField(cred *models.Credential, attribute string) models.Field {
	value, ok := cred.Attribute(attribute)
	if !ok {
		return models.Field{}
	}
	return verified(value)
}

func verified(text string) models.Field {
	return models.Field{Text: text, IsVerified: true}
}
