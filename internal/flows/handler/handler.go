// Package handler serves the relying-party endpoints: application prefill,
// bank account opening and credential pickup.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/flows"
	imodels "proofbridge/internal/issuance/models"
	"proofbridge/internal/platform/middleware"
	"proofbridge/internal/platform/privacy"
	id "proofbridge/pkg/domain"
	dErrors "proofbridge/pkg/domain-errors"
	"proofbridge/pkg/platform/httputil"
)

// Flows is the flow registry surface these endpoints use.
type Flows interface {
	Applicant(ctx context.Context, sessionID id.SessionID) (cmodels.ApplicantFieldSet, error)
	OpenBankAccount(ctx context.Context, sessionID id.SessionID, form flows.BankAccountForm) (*flows.BankAccountOutcome, error)
}

// Credentials reads issued credentials.
type Credentials interface {
	Latest(ctx context.Context, holder string) (json.RawMessage, error)
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]imodels.IssuedCredentialRecord, error)
}

// Handler serves the flow endpoints.
type Handler struct {
	flows       Flows
	credentials Credentials
	logger      *slog.Logger
}

// New creates a flow Handler.
func New(flows Flows, credentials Credentials, logger *slog.Logger) *Handler {
	return &Handler{flows: flows, credentials: credentials, logger: logger}
}

// Register registers the flow routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/flows/{id}/applicant", h.handleApplicant)
	r.Post("/flows/{id}/bank-account", h.handleOpenBankAccount)
	r.Get("/flows/{id}/credentials", h.handleListCredentials)
	r.Get("/credentials/latest", h.handleLatest)
}

func (h *Handler) handleApplicant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	fields, err := h.flows.Applicant(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ApplicantResponse{SessionID: sessionID.String(), Applicant: fields})
}

func (h *Handler) handleOpenBankAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[BankAccountRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.flows.OpenBankAccount(ctx, sessionID, req.toForm())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to open bank account",
			"request_id", requestID,
			"session_id", sessionID.String(),
			"recipient", privacy.MaskEmail(req.RecipientEmail),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBankAccountResponse(outcome))
}

func (h *Handler) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	records, err := h.credentials.ListBySession(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := CredentialListResponse{Credentials: make([]CredentialResponse, 0, len(records))}
	for _, rec := range records {
		resp.Credentials = append(resp.Credentials, toCredentialResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder := strings.TrimSpace(r.URL.Query().Get("holder"))
	if holder == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "holder is required"))
		return
	}

	body, err := h.credentials.Latest(ctx, holder)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, LatestCredentialResponse{Holder: holder, Credential: body})
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}
