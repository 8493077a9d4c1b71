package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/flows"
	"proofbridge/internal/flows/handler/mocks"
	imodels "proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	dErrors "proofbridge/pkg/domain-errors"
	"proofbridge/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Flows,Credentials
type FlowHandlerSuite struct {
	suite.Suite
	flows       *mocks.MockFlows
	credentials *mocks.MockCredentials
	router      http.Handler
	sid         id.SessionID
}

func TestFlowHandlerSuite(t *testing.T) {
	suite.Run(t, new(FlowHandlerSuite))
}

func (s *FlowHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.flows = mocks.NewMockFlows(ctrl)
	s.credentials = mocks.NewMockCredentials(ctrl)
	s.sid = testutil.TestIDs.SessionID1

	r := chi.NewRouter()
	New(s.flows, s.credentials, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *FlowHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func validBankRequest() BankAccountRequest {
	return BankAccountRequest{
		ReceiverDID:    "did:example:holmes",
		RecipientEmail: " Sherlock@Example.com ",
		FirstName:      "Sherlock",
		LastName:       "Holmes",
		StreetAddress:  "221B Baker Street",
		City:           "London",
		ZipCode:        "NW1 6XE",
		State:          "Greater London",
	}
}

func (s *FlowHandlerSuite) TestApplicant() {
	s.Run("returns prefilled fields", func() {
		s.flows.EXPECT().Applicant(gomock.Any(), s.sid).Return(cmodels.ApplicantFieldSet{
			FirstName: cmodels.Field{Text: "Sherlock", IsVerified: true},
			LastName:  cmodels.Field{Text: "Holmes", IsVerified: true},
		}, nil)

		rec := s.do(http.MethodGet, "/flows/"+s.sid.String()+"/applicant", nil)
		s.Equal(http.StatusOK, rec.Code)

		var resp ApplicantResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("Sherlock", resp.Applicant.FirstName.Text)
		s.True(resp.Applicant.LastName.IsVerified)
		s.False(resp.Applicant.City.IsVerified)
	})

	s.Run("not verified yet", func() {
		s.flows.EXPECT().Applicant(gomock.Any(), s.sid).
			Return(cmodels.ApplicantFieldSet{}, dErrors.New(dErrors.CodeNotVerified, "proof session is not verified"))

		rec := s.do(http.MethodGet, "/flows/"+s.sid.String()+"/applicant", nil)
		s.Equal(http.StatusPreconditionFailed, rec.Code)
		s.Contains(rec.Body.String(), "not_verified")
	})
}

func (s *FlowHandlerSuite) TestOpenBankAccount() {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.Run("issues credentials", func() {
		s.flows.EXPECT().OpenBankAccount(gomock.Any(), s.sid, flows.BankAccountForm{
			ReceiverDID:    "did:example:holmes",
			RecipientEmail: "sherlock@example.com",
			FirstName:      "Sherlock",
			LastName:       "Holmes",
			StreetAddress:  "221B Baker Street",
			City:           "London",
			ZipCode:        "NW1 6XE",
			State:          "Greater London",
		}).Return(&flows.BankAccountOutcome{
			SessionID:   s.sid,
			CreditScore: 742,
			Results: []imodels.IssueResult{
				{Type: imodels.TypeBankIdentity, Record: &imodels.IssuedCredentialRecord{
					ID: "cred_1", Type: imodels.TypeBankIdentity, Body: json.RawMessage(`{"id":"vc-1"}`), IssuedAt: issuedAt,
				}},
				{Type: imodels.TypeCreditScore, Reused: true, Record: &imodels.IssuedCredentialRecord{
					ID: "cred_2", Type: imodels.TypeCreditScore, Body: json.RawMessage(`{"id":"vc-2"}`),
					IsRevocable: true, RevocationID: "rev-2", IssuedAt: issuedAt,
				}},
			},
		}, nil)

		rec := s.do(http.MethodPost, "/flows/"+s.sid.String()+"/bank-account", validBankRequest())
		s.Equal(http.StatusOK, rec.Code)

		var resp BankAccountResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal(742, resp.CreditScore)
		s.Require().Len(resp.Credentials, 2)
		s.Equal("BankIdentity", resp.Credentials[0].Type)
		s.False(resp.Credentials[0].Revocable)
		s.JSONEq(`{"id":"vc-1"}`, string(resp.Credentials[0].Body))
		s.Equal("rev-2", resp.Credentials[1].RevocationID)
		s.True(resp.Credentials[1].Reused)
	})

	s.Run("missing biometric proof", func() {
		s.flows.EXPECT().OpenBankAccount(gomock.Any(), s.sid, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeMissingEvidence, "biometric proof missing"))

		rec := s.do(http.MethodPost, "/flows/"+s.sid.String()+"/bank-account", validBankRequest())
		s.Equal(http.StatusPreconditionFailed, rec.Code)
		s.Contains(rec.Body.String(), "missing_evidence")
	})

	s.Run("rejects an incomplete form", func() {
		req := validBankRequest()
		req.City = " "
		rec := s.do(http.MethodPost, "/flows/"+s.sid.String()+"/bank-account", req)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "city must not be blank")
	})

	s.Run("requires a holder", func() {
		req := validBankRequest()
		req.ReceiverDID = ""
		req.RecipientEmail = ""
		rec := s.do(http.MethodPost, "/flows/"+s.sid.String()+"/bank-account", req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("rejects invalid json", func() {
		req := httptest.NewRequest(http.MethodPost, "/flows/"+s.sid.String()+"/bank-account", bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *FlowHandlerSuite) TestListCredentials() {
	s.credentials.EXPECT().ListBySession(gomock.Any(), s.sid).Return([]imodels.IssuedCredentialRecord{
		{ID: "cred_1", Type: imodels.TypeBankIdentity, Body: json.RawMessage(`{}`)},
	}, nil)

	rec := s.do(http.MethodGet, "/flows/"+s.sid.String()+"/credentials", nil)
	s.Equal(http.StatusOK, rec.Code)

	var resp CredentialListResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.Credentials, 1)
	s.Equal("cred_1", resp.Credentials[0].ID)
}

func (s *FlowHandlerSuite) TestLatest() {
	s.Run("returns cached body", func() {
		s.credentials.EXPECT().Latest(gomock.Any(), "did:example:holmes").Return(json.RawMessage(`{"id":"vc-2"}`), nil)

		rec := s.do(http.MethodGet, "/credentials/latest?holder=did:example:holmes", nil)
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"holder":"did:example:holmes","credential":{"id":"vc-2"}}`, rec.Body.String())
	})

	s.Run("unknown holder", func() {
		s.credentials.EXPECT().Latest(gomock.Any(), "nobody").Return(nil, dErrors.New(dErrors.CodeNotFound, "no credential cached for holder"))
		rec := s.do(http.MethodGet, "/credentials/latest?holder=nobody", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("holder is required", func() {
		rec := s.do(http.MethodGet, "/credentials/latest", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
