package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "proofbridge/pkg/domain-errors"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) { return "", errors.New("no key") }

type ClientSuite struct {
	suite.Suite
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) TestCallSendsJSONAndHeaders() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal(http.MethodPost, r.Method)
		s.Equal("/proof-requests", r.URL.Path)
		s.Equal("Bearer tkn", r.Header.Get("Authorization"))
		s.Equal("abc", r.Header.Get("Idempotency-Key"))
		s.Equal("application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("LOAN_PROOF", body["proofTemplateId"])
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient("verifier", server.URL+"/", WithTokenSource(staticToken("tkn")))
	resp, err := client.Call(context.Background(), http.MethodPost, "/proof-requests",
		map[string]string{"proofTemplateId": "LOAN_PROOF"}, map[string]string{"Idempotency-Key": "abc"})

	s.Require().NoError(err)
	s.JSONEq(`{"ok":true}`, string(resp))
}

func (s *ClientSuite) TestStatusClassification() {
	cases := []struct {
		status    int
		category  Category
		retryable bool
	}{
		{http.StatusUnauthorized, CategoryAuthentication, false},
		{http.StatusNotFound, CategoryNotFound, false},
		{http.StatusTooManyRequests, CategoryRateLimited, true},
		{http.StatusGatewayTimeout, CategoryTimeout, true},
		{http.StatusBadGateway, CategoryOutage, true},
		{http.StatusUnprocessableEntity, CategoryBadData, false},
	}
	for _, tc := range cases {
		s.Run(http.StatusText(tc.status), func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			_, err := NewClient("issuer", server.URL).Call(context.Background(), http.MethodGet, "/x", nil, nil)
			s.Require().Error(err)
			s.Equal(tc.category, CategoryOf(err))
			s.Equal(tc.retryable, IsRetryable(err))
		})
	}
}

func (s *ClientSuite) TestRejectedRequestKeepsRawPayload() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"schema"}`))
	}))
	defer server.Close()

	_, err := NewClient("issuer", server.URL).Call(context.Background(), http.MethodPost, "/credentials", map[string]int{"a": 1}, nil)
	s.True(IsMalformed(err))
	s.Equal(`{"error":"schema"}`, string(RawPayload(err)))
	s.True(dErrors.HasCode(ToDomain(err, "issue failed"), dErrors.CodeMalformedResponse))
}

func (s *ClientSuite) TestTimeoutIsRetryable() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewClient("verifier", server.URL, WithTimeout(20*time.Millisecond)).
		Call(context.Background(), http.MethodGet, "/slow", nil, nil)
	s.Equal(CategoryTimeout, CategoryOf(err))
	s.True(IsRetryable(err))
	s.True(dErrors.HasCode(ToDomain(err, "poll"), dErrors.CodeTimeout))
}

func (s *ClientSuite) TestCanceledContextIsNotRetryable() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient("verifier", server.URL).Call(ctx, http.MethodGet, "/x", nil, nil)
	s.ErrorIs(err, context.Canceled)
	s.False(IsRetryable(err))
}

func (s *ClientSuite) TestTokenFailureIsAuthentication() {
	_, err := NewClient("issuer", "http://127.0.0.1:1", WithTokenSource(failingToken{})).
		Call(context.Background(), http.MethodGet, "/x", nil, nil)
	s.Equal(CategoryAuthentication, CategoryOf(err))
	s.True(dErrors.HasCode(ToDomain(err, "x"), dErrors.CodeUpstreamFailure))
}
