// Package verifier is the HTTP client for the external verification service.
// Proof request internals are opaque: the service hands back a QR payload and a
// request id, and later a status plus credential bundle.
package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/proof/models"
	"proofbridge/pkg/platform/upstream"
)

const serviceName = "verifier"

// Client talks to the verification service.
type Client struct {
	http *upstream.Client
}

// New creates a verification service client rooted at baseURL.
func New(baseURL string, opts ...upstream.Option) *Client {
	return &Client{http: upstream.NewClient(serviceName, baseURL, opts...)}
}

type createRequest struct {
	ProofTemplateID     string   `json:"proofTemplateId"`
	FilteredCredentials []string `json:"filteredCredentials,omitempty"`
	Required            bool     `json:"required,omitempty"`
}

type createResponse struct {
	QRPayload string `json:"qrPayload"`
	RequestID string `json:"requestId"`
}

type pollResponse struct {
	Status string      `json:"status"`
	Bundle *wireBundle `json:"bundle"`
}

// Credentials is a pointer so an absent or null array is told apart from an
// empty one.
type wireBundle struct {
	Credentials *[]wireCredential `json:"credentials"`
}

type wireCredential struct {
	CredentialSubject map[string]any `json:"credentialSubject"`
	IssuanceDate      string         `json:"issuanceDate"`
	Type              []string       `json:"type"`
}

// CreateProofRequest registers a proof request for the template.
func (c *Client) CreateProofRequest(ctx context.Context, req models.ProofRequest) (*models.CreatedRequest, error) {
	body := createRequest{
		ProofTemplateID:     req.TemplateID,
		FilteredCredentials: req.FilteredCredentials,
		Required:            req.Required,
	}
	raw, err := c.http.Call(ctx, http.MethodPost, "/proof-requests", body, nil)
	if err != nil {
		return nil, err
	}

	var resp createResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, upstream.Malformed(serviceName, "failed to decode proof request", raw, err)
	}
	if resp.RequestID == "" || resp.QRPayload == "" {
		return nil, upstream.Malformed(serviceName, "proof request missing qrPayload or requestId", raw, nil)
	}
	return &models.CreatedRequest{RequestID: resp.RequestID, QRPayload: resp.QRPayload}, nil
}

// PollProofResult fetches the current state of a proof request.
func (c *Client) PollProofResult(ctx context.Context, requestID string) (*models.PollResult, error) {
	raw, err := c.http.Call(ctx, http.MethodGet, "/proof-requests/"+url.PathEscape(requestID), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodePoll(raw)
}

func decodePoll(raw []byte) (*models.PollResult, error) {
	var resp pollResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, upstream.Malformed(serviceName, "failed to decode proof result", raw, err)
	}

	result := &models.PollResult{Raw: raw}
	switch models.PollStatus(strings.ToLower(resp.Status)) {
	case models.PollPending:
		result.Status = models.PollPending
	case models.PollFailed:
		result.Status = models.PollFailed
	case models.PollVerified:
		if resp.Bundle == nil {
			return nil, upstream.Malformed(serviceName, "verified proof result without bundle", raw, nil)
		}
		bundle, err := resp.Bundle.toModel()
		if err != nil {
			return nil, upstream.Malformed(serviceName, err.Error(), raw, nil)
		}
		result.Status = models.PollVerified
		result.Bundle = bundle
	default:
		return nil, upstream.Malformed(serviceName, "unknown proof status "+resp.Status, raw, nil)
	}
	return result, nil
}

func (b *wireBundle) toModel() (*cmodels.Bundle, error) {
	if b.Credentials == nil {
		return nil, errors.New("bundle without credentials")
	}
	creds := *b.Credentials
	bundle := &cmodels.Bundle{Credentials: make([]cmodels.Credential, 0, len(creds))}
	for i, wc := range creds {
		if wc.CredentialSubject == nil {
			return nil, fmt.Errorf("credential %d without credentialSubject", i)
		}
		bundle.Credentials = append(bundle.Credentials, cmodels.Credential{
			Subject:      wc.CredentialSubject,
			IssuanceDate: parseIssuanceDate(wc.IssuanceDate),
			Types:        wc.Type,
		})
	}
	return bundle, nil
}

// issuanceDate is untrusted; unparseable values become the zero time.
func parseIssuanceDate(value string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
