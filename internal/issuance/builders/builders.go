// Package builders turns an issuance payload into the credential body sent to
// the issuance service. Builders are pure: the same payload always yields the
// same body.
package builders

import (
	"math/rand/v2"
	"strings"
	"time"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/issuance/models"
	dErrors "proofbridge/pkg/domain-errors"
)

// Credit score bounds used when the relying party does not supply a score.
const (
	MinCreditScore = 700
	MaxCreditScore = 800
)

// RandomCreditScore draws a score in [MinCreditScore, MaxCreditScore].
func RandomCreditScore() int {
	return MinCreditScore + rand.IntN(MaxCreditScore-MinCreditScore+1)
}

// BankIdentity builds the bank identity credential.
type BankIdentity struct{}

func (BankIdentity) Type() models.CredentialType { return models.TypeBankIdentity }

func (BankIdentity) Build(p models.Payload) (models.Body, error) {
	if p.Holder() == "" {
		return models.Body{}, dErrors.New(dErrors.CodeValidation, "receiver DID or recipient email is required")
	}
	name := strings.Join(strings.Fields(p.ReceiverName), " ")
	if name == "" {
		return models.Body{}, dErrors.New(dErrors.CodeValidation, "receiver name is required")
	}

	claims := map[string]any{
		"receiverDid":    p.ReceiverDID,
		"recipientEmail": p.RecipientEmail,
		"receiverName":   name,
		"receiverAddress": map[string]any{
			"address": p.ReceiverAddress.Street,
			"city":    p.ReceiverAddress.City,
			"zip":     p.ReceiverAddress.ZipCode,
			"state":   p.ReceiverAddress.State,
		},
	}
	addBiometric(claims, p.Biometric)
	return models.Body{Type: models.TypeBankIdentity, Claims: claims}, nil
}

// CreditScore builds the credit score credential.
type CreditScore struct{}

func (CreditScore) Type() models.CredentialType { return models.TypeCreditScore }

func (CreditScore) Build(p models.Payload) (models.Body, error) {
	if p.Holder() == "" {
		return models.Body{}, dErrors.New(dErrors.CodeValidation, "receiver DID or recipient email is required")
	}
	if p.CreditScore == nil {
		return models.Body{}, dErrors.New(dErrors.CodeValidation, "credit score is required")
	}
	if *p.CreditScore < 300 || *p.CreditScore > 850 {
		return models.Body{}, dErrors.New(dErrors.CodeValidation, "credit score out of range")
	}

	claims := map[string]any{
		"receiverDid":    p.ReceiverDID,
		"recipientEmail": p.RecipientEmail,
		"creditScore":    *p.CreditScore,
	}
	addBiometric(claims, p.Biometric)
	return models.Body{Type: models.TypeCreditScore, Claims: claims}, nil
}

func addBiometric(claims map[string]any, link *cmodels.BiometricLink) {
	if link == nil {
		return
	}
	claims["biometricData"] = map[string]any{
		"id":      link.ID,
		"created": link.CreatedAt.UTC().Format(time.RFC3339),
	}
}
