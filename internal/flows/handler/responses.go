package handler

import (
	"encoding/json"
	"time"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/flows"
	imodels "proofbridge/internal/issuance/models"
)

type ApplicantResponse struct {
	SessionID string                    `json:"session_id"`
	Applicant cmodels.ApplicantFieldSet `json:"applicant"`
}

type CredentialResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Body         json.RawMessage `json:"body"`
	Revocable    bool            `json:"revocable"`
	RevocationID string          `json:"revocation_id,omitempty"`
	IssuedAt     time.Time       `json:"issued_at"`
	Reused       bool            `json:"reused,omitempty"`
}

type BankAccountResponse struct {
	SessionID   string               `json:"session_id"`
	CreditScore int                  `json:"credit_score"`
	Credentials []CredentialResponse `json:"credentials"`
}

type CredentialListResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

type LatestCredentialResponse struct {
	Holder     string          `json:"holder"`
	Credential json.RawMessage `json:"credential"`
}

func toCredentialResponse(rec imodels.IssuedCredentialRecord) CredentialResponse {
	return CredentialResponse{
		ID:           rec.ID.String(),
		Type:         string(rec.Type),
		Body:         rec.Body,
		Revocable:    rec.IsRevocable,
		RevocationID: rec.RevocationID,
		IssuedAt:     rec.IssuedAt,
	}
}

func toBankAccountResponse(o *flows.BankAccountOutcome) BankAccountResponse {
	resp := BankAccountResponse{
		SessionID:   o.SessionID.String(),
		CreditScore: o.CreditScore,
		Credentials: make([]CredentialResponse, 0, len(o.Results)),
	}
	for _, res := range o.Results {
		if res.Record == nil {
			continue
		}
		c := toCredentialResponse(*res.Record)
		c.Reused = res.Reused
		resp.Credentials = append(resp.Credentials, c)
	}
	return resp
}
