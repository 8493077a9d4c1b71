package verifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/proof/models"
	"proofbridge/pkg/platform/upstream"
)

type VerifierSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	client  *Client
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	s.client = New(s.server.URL)
}

func (s *VerifierSuite) TearDownTest() {
	s.server.Close()
}

func (s *VerifierSuite) TestCreateProofRequest() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/proof-requests", r.URL.Path)
		var body map[string]any
		s.Require().NoError(json.NewDecoder(r.Body).Decode(&body))
		s.Equal("URBANSCAPE_BANKBIO", body["proofTemplateId"])
		s.Equal([]any{"biometric", "loan"}, body["filteredCredentials"])
		s.Equal(true, body["required"])
		_, _ = w.Write([]byte(`{"qrPayload":"didcomm://abc","requestId":"req-1"}`))
	}

	created, err := s.client.CreateProofRequest(context.Background(), models.ProofRequest{
		TemplateID:          "URBANSCAPE_BANKBIO",
		FilteredCredentials: []string{"biometric", "loan"},
		Required:            true,
	})
	s.Require().NoError(err)
	s.Equal("req-1", created.RequestID)
	s.Equal("didcomm://abc", created.QRPayload)
}

func (s *VerifierSuite) TestCreateProofRequestMissingFields() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"qrPayload":""}`))
	}

	_, err := s.client.CreateProofRequest(context.Background(), models.ProofRequest{TemplateID: "LOAN_PROOF"})
	s.True(upstream.IsMalformed(err))
}

func (s *VerifierSuite) TestPollVerified() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/proof-requests/req-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"verified","bundle":{"credentials":[
			{"credentialSubject":{"name":"Jane Doe","zip":94107},"issuanceDate":"2025-02-03T04:05:06Z","type":["VerifiableCredential"]},
			{"credentialSubject":{"biometric_enrollment_id":"bio-1"},"issuanceDate":"not-a-date"}
		]}}`))
	}

	result, err := s.client.PollProofResult(context.Background(), "req-1")
	s.Require().NoError(err)
	s.Equal(models.PollVerified, result.Status)
	s.Require().Equal(2, result.Bundle.Len())
	s.Equal(time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC), result.Bundle.Credentials[0].IssuanceDate)
	s.True(result.Bundle.Credentials[1].IssuanceDate.IsZero())
	s.Equal(cmodels.KindBiometric, result.Bundle.Credentials[1].Kind())
	s.NotEmpty(result.Raw)
}

func (s *VerifierSuite) TestPollPendingAndFailed() {
	for status, want := range map[string]models.PollStatus{"pending": models.PollPending, "FAILED": models.PollFailed} {
		s.handler = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
		}
		result, err := s.client.PollProofResult(context.Background(), "req-1")
		s.Require().NoError(err)
		s.Equal(want, result.Status)
		s.Nil(result.Bundle)
	}
}

func (s *VerifierSuite) TestPollVerifiedEmptyBundle() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"verified","bundle":{"credentials":[]}}`))
	}
	result, err := s.client.PollProofResult(context.Background(), "req-1")
	s.Require().NoError(err)
	s.Equal(models.PollVerified, result.Status)
	s.Equal(0, result.Bundle.Len())
}

func (s *VerifierSuite) TestPollMalformed() {
	cases := map[string]string{
		"not json":                     `<html>`,
		"verified without data":        `{"status":"verified"}`,
		"bundle without credentials":   `{"status":"verified","bundle":{}}`,
		"null credentials":             `{"status":"verified","bundle":{"credentials":null}}`,
		"credential without subject":   `{"status":"verified","bundle":{"credentials":[{}]}}`,
		"credential with null subject": `{"status":"verified","bundle":{"credentials":[{"credentialSubject":null}]}}`,
		"unknown status":               `{"status":"maybe"}`,
	}
	for name, payload := range cases {
		s.Run(name, func() {
			s.handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(payload))
			}
			_, err := s.client.PollProofResult(context.Background(), "req-1")
			s.True(upstream.IsMalformed(err))
			s.Equal(payload, string(upstream.RawPayload(err)))
			s.False(upstream.IsRetryable(err))
		})
	}
}

func (s *VerifierSuite) TestPollOutageIsRetryable() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, err := s.client.PollProofResult(context.Background(), "req-1")
	s.True(upstream.IsRetryable(err))
}
