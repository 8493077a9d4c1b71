// Command issuer is a development stand-in for the issuance service. It signs
// nothing: records are echoed back with an id and, when revocable, a
// revocation id. Requests repeating an Idempotency-Key get the first answer.
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

	"proofbridge/internal/issuance/issuer"
	"proofbridge/internal/platform/logger"
	"proofbridge/internal/platform/servicetoken"
	"proofbridge/pkg/platform/httputil"
)

type issueResponse struct {
	Record       map[string]any `json:"record"`
	RevocationID string         `json:"revocationId,omitempty"`
}

type server struct {
	mu     sync.Mutex
	issued map[string]issueResponse
	logger *slog.Logger
}

func main() {
	log := logger.New(envOr("LOG_LEVEL", "info"))
	s := &server{issued: make(map[string]issueResponse), logger: log}

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "mock-issuer"})
	})
	r.With(servicetoken.RequireToken(
		envOr("SERVICE_SIGNING_KEY", "dev-service-key-change-in-production"),
		servicetoken.AudienceIssuer, servicetoken.ScopeCredentialIssue, log),
	).Post("/credentials", s.issue)

	addr := ":" + envOr("PORT", "9002")
	log.Info("mock issuance service starting", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error("mock issuer stopped", "error", err)
		os.Exit(1)
	}
}

func (s *server) issue(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Body struct {
			Type   string         `json:"type"`
			Claims map[string]any `json:"claims"`
		} `json:"body"`
		Revocable bool `json:"revocable"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Body.Type == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "credential body with type is required"})
		return
	}

	key := r.Header.Get(issuer.IdempotencyHeader)
	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.issued[key]; ok && key != "" {
		httputil.WriteJSON(w, http.StatusOK, prior)
		return
	}

	resp := issueResponse{
		Record: map[string]any{
			"id":                "urn:uuid:" + uuid.NewString(),
			"type":              []string{"VerifiableCredential", body.Body.Type},
			"issuanceDate":      time.Now().UTC().Format(time.RFC3339),
			"credentialSubject": body.Body.Claims,
		},
	}
	if body.Revocable {
		resp.RevocationID = uuid.NewString()
	}
	if key != "" {
		s.issued[key] = resp
	}

	s.logger.Info("credential issued", "type", body.Body.Type, "revocable", body.Revocable)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
