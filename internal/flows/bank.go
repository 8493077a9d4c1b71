package flows

import (
	"context"
	"strings"

	"proofbridge/internal/credential/extract"
	"proofbridge/internal/issuance/builders"
	imodels "proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	dErrors "proofbridge/pkg/domain-errors"
)

// BankAccountForm is what the applicant submits when opening an account.
type BankAccountForm struct {
	ReceiverDID    string
	RecipientEmail string
	FirstName      string
	LastName       string
	StreetAddress  string
	City           string
	ZipCode        string
	State          string
}

// BankAccountOutcome is the result of the flow's single issuance run.
type BankAccountOutcome struct {
	SessionID   id.SessionID
	Results     []imodels.IssueResult
	CreditScore int
}

func defaultCreditScore() int {
	return builders.RandomCreditScore()
}

// OpenBankAccount issues the bank identity credential and then the revocable
// credit score credential for a verified bank flow.
//
// A successful outcome is kept on the flow and returned to every later call.
// A failed run is not kept: the next call runs again and the idempotency keys
// of already issued credentials keep it from issuing them twice.
func (r *Registry) OpenBankAccount(ctx context.Context, sessionID id.SessionID, form BankAccountForm) (*BankAccountOutcome, error) {
	f, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if f.Kind() != KindBankAccount {
		return nil, dErrors.New(dErrors.CodeBadRequest, "flow does not open bank accounts")
	}

	f.bankMu.Lock()
	defer f.bankMu.Unlock()
	if f.bankOutcome != nil {
		return f.bankOutcome, nil
	}

	bundle, err := r.verifiedBundle(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	link, ok := extract.BiometricFromBundle(bundle)
	if !ok {
		return nil, dErrors.New(dErrors.CodeMissingEvidence, "biometric proof missing")
	}

	if f.creditScore == nil {
		score := r.scoreSource()
		f.creditScore = &score
	}

	payload := imodels.Payload{
		SessionID:      sessionID,
		ReceiverDID:    form.ReceiverDID,
		RecipientEmail: form.RecipientEmail,
		ReceiverName:   strings.TrimSpace(form.FirstName + " " + form.LastName),
		ReceiverAddress: imodels.Address{
			Street:  form.StreetAddress,
			City:    form.City,
			ZipCode: form.ZipCode,
			State:   form.State,
		},
		CreditScore: f.creditScore,
		Biometric:   link,
	}

	results, err := r.issuance.IssueAll(ctx, []imodels.IssueRequest{
		{Type: imodels.TypeBankIdentity, Payload: payload, Revocable: false},
		{Type: imodels.TypeCreditScore, Payload: payload, Revocable: true},
	})
	if err != nil {
		r.logger.WarnContext(ctx, "bank account issuance failed",
			"session_id", sessionID.String(),
			"issued", countIssued(results),
			"error", err,
		)
		return nil, err
	}

	f.bankOutcome = &BankAccountOutcome{
		SessionID:   sessionID,
		Results:     results,
		CreditScore: *f.creditScore,
	}
	r.logger.InfoContext(ctx, "bank account opened", "session_id", sessionID.String(), "credentials", len(results))
	return f.bankOutcome, nil
}

func countIssued(results []imodels.IssueResult) int {
	n := 0
	for _, res := range results {
		if res.Err == nil && res.Record != nil {
			n++
		}
	}
	return n
}
