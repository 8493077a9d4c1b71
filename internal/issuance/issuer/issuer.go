// Package issuer is the HTTP client for the external issuance service.
package issuer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"proofbridge/internal/issuance/models"
	"proofbridge/pkg/platform/upstream"
)

const serviceName = "issuer"

// IdempotencyHeader carries the pipeline's idempotency key so the service can
// deduplicate retried requests.
const IdempotencyHeader = "Idempotency-Key"

// Client talks to the issuance service.
type Client struct {
	http *upstream.Client
}

// New creates an issuance service client rooted at baseURL.
func New(baseURL string, opts ...upstream.Option) *Client {
	return &Client{http: upstream.NewClient(serviceName, baseURL, opts...)}
}

type issueRequest struct {
	Body      models.Body `json:"body"`
	Revocable bool        `json:"revocable"`
}

type issueResponse struct {
	Record       json.RawMessage `json:"record"`
	RevocationID string          `json:"revocationId"`
}

// IssueCredential submits body for signing and returns the issued record.
func (c *Client) IssueCredential(ctx context.Context, body models.Body, revocable bool, idempotencyKey string) (*models.IssuedResponse, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{IdempotencyHeader: idempotencyKey}
	}

	raw, err := c.http.Call(ctx, http.MethodPost, "/credentials", issueRequest{Body: body, Revocable: revocable}, headers)
	if err != nil {
		return nil, err
	}

	var resp issueResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, upstream.Malformed(serviceName, "failed to decode issued credential", raw, err)
	}
	trimmed := bytes.TrimSpace(resp.Record)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, upstream.Malformed(serviceName, "issued credential missing record", raw, nil)
	}
	return &models.IssuedResponse{Record: resp.Record, RevocationID: resp.RevocationID}, nil
}
