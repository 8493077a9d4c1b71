// Command verifier is a development stand-in for the verification service.
// Proof requests stay pending for AUTO_VERIFY_AFTER and then verify with a
// fixture bundle chosen by template. POST /proof-requests/{id}/fail forces a
// failure.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/platform/logger"
	"proofbridge/internal/platform/servicetoken"
	"proofbridge/pkg/platform/httputil"
)

type proofRequest struct {
	ID         string
	TemplateID string
	Filtered   []string
	CreatedAt  time.Time
	Failed     bool
}

type server struct {
	mu          sync.Mutex
	requests    map[string]*proofRequest
	verifyAfter time.Duration
	logger      *slog.Logger
}

func main() {
	log := logger.New(envOr("LOG_LEVEL", "info"))
	verifyAfter, err := time.ParseDuration(envOr("AUTO_VERIFY_AFTER", "10s"))
	if err != nil {
		log.Error("invalid AUTO_VERIFY_AFTER", "error", err)
		os.Exit(1)
	}

	s := &server{requests: make(map[string]*proofRequest), verifyAfter: verifyAfter, logger: log}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "mock-verifier"})
	})
	r.Group(func(r chi.Router) {
		r.Use(servicetoken.RequireToken(
			envOr("SERVICE_SIGNING_KEY", "dev-service-key-change-in-production"),
			servicetoken.AudienceVerifier, servicetoken.ScopeProofRequest, log))
		r.Post("/proof-requests", s.create)
		r.Get("/proof-requests/{id}", s.poll)
		r.Post("/proof-requests/{id}/fail", s.fail)
	})

	addr := ":" + envOr("PORT", "9001")
	log.Info("mock verification service starting", "addr", addr, "verify_after", verifyAfter)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error("mock verifier stopped", "error", err)
		os.Exit(1)
	}
}

func (s *server) create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProofTemplateID     string   `json:"proofTemplateId"`
		FilteredCredentials []string `json:"filteredCredentials"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProofTemplateID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "proofTemplateId is required"})
		return
	}

	req := &proofRequest{
		ID:         uuid.NewString(),
		TemplateID: body.ProofTemplateID,
		Filtered:   body.FilteredCredentials,
		CreatedAt:  time.Now(),
	}
	s.mu.Lock()
	s.requests[req.ID] = req
	s.mu.Unlock()

	s.logger.Info("proof request created", "request_id", req.ID, "template", req.TemplateID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"requestId": req.ID,
		"qrPayload": "didcomm://proof-request?id=" + req.ID,
	})
}

func (s *server) poll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	req, ok := s.requests[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown proof request"})
		return
	}

	switch {
	case req.Failed:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed"})
	case time.Since(req.CreatedAt) < s.verifyAfter:
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "pending"})
	default:
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "verified",
			"bundle": map[string]any{"credentials": fixtureBundle(req.TemplateID)},
		})
	}
}

func (s *server) fail(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[chi.URLParam(r, "id")]
	if !ok {
		httputil.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown proof request"})
		return
	}
	req.Failed = true
	w.WriteHeader(http.StatusNoContent)
}

func fixtureBundle(templateID string) []map[string]any {
	issued := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339)
	identity := map[string]any{
		"type":         []string{"VerifiableCredential", "AddressCredential"},
		"issuanceDate": issued,
		"credentialSubject": map[string]any{
			cmodels.AttrName:    "Alice Marie Smith",
			cmodels.AttrAddress: "123 Main St",
			cmodels.AttrCity:    "Springfield",
			cmodels.AttrZip:     90210,
			cmodels.AttrState:   "CA",
		},
	}
	biometric := map[string]any{
		"type":              []string{"VerifiableCredential", "BiometricCredential"},
		"issuanceDate":      issued,
		"credentialSubject": map[string]any{cmodels.AttrBiometricEnrollmentID: "enroll-" + uuid.NewString()[:8]},
	}
	creditScore := map[string]any{
		"type":              []string{"VerifiableCredential", "CreditScore"},
		"issuanceDate":      issued,
		"credentialSubject": map[string]any{cmodels.AttrCreditScore: 742},
	}

	switch templateID {
	case "BIOMETRIC_VERIFICATION":
		return []map[string]any{biometric}
	case "URBANSCAPE_BANKBIO":
		return []map[string]any{biometric, identity}
	case "URBANSCAPE_CREDITSCORE":
		return []map[string]any{creditScore}
	default:
		return []map[string]any{identity}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
