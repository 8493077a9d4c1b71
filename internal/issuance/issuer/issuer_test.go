package issuer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	"proofbridge/internal/issuance/models"
	"proofbridge/pkg/platform/upstream"
)

type IssuerSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	client  *Client
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) SetupTest() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	s.client = New(s.server.URL)
}

func (s *IssuerSuite) TearDownTest() {
	s.server.Close()
}

func body() models.Body {
	return models.Body{Type: models.TypeCreditScore, Claims: map[string]any{"creditScore": 731}}
}

func (s *IssuerSuite) TestIssueRevocable() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/credentials", r.URL.Path)
		s.Equal("key-1", r.Header.Get(IdempotencyHeader))

		var req map[string]any
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&req))
		s.Equal(true, req["revocable"])
		s.Equal(map[string]any{"type": "CreditScore", "claims": map[string]any{"creditScore": float64(731)}}, req["body"])

		_, _ = w.Write([]byte(`{"record":{"jwt":"eyJ..."},"revocationId":"rev-9"}`))
	}

	resp, err := s.client.IssueCredential(context.Background(), body(), true, "key-1")
	s.Require().NoError(err)
	s.JSONEq(`{"jwt":"eyJ..."}`, string(resp.Record))
	s.Equal("rev-9", resp.RevocationID)
}

func (s *IssuerSuite) TestIssueWithoutKeyOmitsHeader() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[IdempotencyHeader]
		s.False(present)
		_, _ = w.Write([]byte(`{"record":"opaque"}`))
	}

	resp, err := s.client.IssueCredential(context.Background(), body(), false, "")
	s.Require().NoError(err)
	s.Empty(resp.RevocationID)
}

func (s *IssuerSuite) TestMalformedResponses() {
	cases := map[string]string{
		"not json":       `<html>`,
		"missing record": `{"revocationId":"rev-1"}`,
		"null record":    `{"record":null}`,
	}
	for name, payload := range cases {
		s.Run(name, func() {
			s.handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(payload))
			}
			_, err := s.client.IssueCredential(context.Background(), body(), false, "k")
			s.True(upstream.IsMalformed(err))
			s.Equal([]byte(payload), upstream.RawPayload(err))
		})
	}
}

func (s *IssuerSuite) TestServiceOutageIsRetryable() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, err := s.client.IssueCredential(context.Background(), body(), false, "k")
	s.Require().Error(err)
	s.True(upstream.IsRetryable(err))
	s.Equal(upstream.CategoryOutage, upstream.CategoryOf(err))
}
