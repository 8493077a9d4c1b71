package handler

import (
	"strings"

	"proofbridge/internal/flows"
	"proofbridge/pkg/validation"
)

// BankAccountRequest is the account opening form. Either the DID or the email
// identifies the holder.
type BankAccountRequest struct {
	ReceiverDID    string `json:"receiver_did" validate:"required_without=RecipientEmail,max=512"`
	RecipientEmail string `json:"recipient_email" validate:"omitempty,email,max=254"`
	FirstName      string `json:"first_name" validate:"notblank,max=100"`
	LastName       string `json:"last_name" validate:"notblank,max=100"`
	StreetAddress  string `json:"street_address" validate:"notblank,max=200"`
	City           string `json:"city" validate:"notblank,max=100"`
	ZipCode        string `json:"zip_code" validate:"zipcode"`
	State          string `json:"state" validate:"notblank,max=100"`
}

func (r *BankAccountRequest) Normalize() {
	if r == nil {
		return
	}
	r.ReceiverDID = strings.TrimSpace(r.ReceiverDID)
	r.RecipientEmail = strings.ToLower(strings.TrimSpace(r.RecipientEmail))
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.StreetAddress = strings.TrimSpace(r.StreetAddress)
	r.City = strings.TrimSpace(r.City)
	r.ZipCode = strings.TrimSpace(r.ZipCode)
	r.State = strings.TrimSpace(r.State)
}

func (r *BankAccountRequest) Validate() error {
	return validation.Validate(r)
}

func (r *BankAccountRequest) toForm() flows.BankAccountForm {
	return flows.BankAccountForm{
		ReceiverDID:    r.ReceiverDID,
		RecipientEmail: r.RecipientEmail,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		StreetAddress:  r.StreetAddress,
		City:           r.City,
		ZipCode:        r.ZipCode,
		State:          r.State,
	}
}
