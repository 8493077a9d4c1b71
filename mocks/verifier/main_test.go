package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cmodels "proofbridge/internal/credential/models"
)

func newTestRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Post("/proof-requests", s.create)
	r.Get("/proof-requests/{id}", s.poll)
	r.Post("/proof-requests/{id}/fail", s.fail)
	return r
}

func TestProofRequestLifecycle(t *testing.T) {
	s := &server{
		requests: make(map[string]*proofRequest),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	router := newTestRouter(s)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/proof-requests",
		strings.NewReader(`{"proofTemplateId":"URBANSCAPE_BANKBIO"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		RequestID string `json:"requestId"`
		QRPayload string `json:"qrPayload"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Contains(t, created.QRPayload, created.RequestID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proof-requests/"+created.RequestID, nil))
	var polled struct {
		Status string `json:"status"`
		Bundle struct {
			Credentials []struct {
				CredentialSubject map[string]any `json:"credentialSubject"`
			} `json:"credentials"`
		} `json:"bundle"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&polled))
	assert.Equal(t, "verified", polled.Status)
	require.Len(t, polled.Bundle.Credentials, 2)
	assert.Contains(t, polled.Bundle.Credentials[0].CredentialSubject, cmodels.AttrBiometricEnrollmentID)
	assert.Contains(t, polled.Bundle.Credentials[1].CredentialSubject, cmodels.AttrAddress)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/proof-requests/"+created.RequestID+"/fail", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proof-requests/"+created.RequestID, nil))
	assert.JSONEq(t, `{"status":"failed"}`, rec.Body.String())
}

func TestUnknownRequest(t *testing.T) {
	s := &server{requests: make(map[string]*proofRequest), logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	rec := httptest.NewRecorder()
	newTestRouter(s).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/proof-requests/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFixtureBundleByTemplate(t *testing.T) {
	assert.Len(t, fixtureBundle("LOAN_PROOF"), 1)
	assert.Len(t, fixtureBundle("BIOMETRIC_VERIFICATION"), 1)
	assert.Contains(t, fixtureBundle("URBANSCAPE_CREDITSCORE")[0]["credentialSubject"], cmodels.AttrCreditScore)
}
