package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proofbridge/internal/flows"
	"proofbridge/internal/platform/middleware"
	id "proofbridge/pkg/domain"
	"proofbridge/pkg/platform/httputil"
)

// Sessions is the flow registry surface the proof session endpoints use.
type Sessions interface {
	Start(ctx context.Context, kind flows.Kind, sessionID id.SessionID) (*flows.Started, error)
	Status(ctx context.Context, sessionID id.SessionID) (*flows.Status, error)
	Reset(sessionID id.SessionID) error
	Close(ctx context.Context, sessionID id.SessionID) error
}

// Handler serves the proof session endpoints.
type Handler struct {
	sessions Sessions
	logger   *slog.Logger
}

// New creates a proof session Handler.
func New(sessions Sessions, logger *slog.Logger) *Handler {
	return &Handler{sessions: sessions, logger: logger}
}

// Register registers the proof session routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proof/sessions", h.handleStart)
	r.Get("/proof/sessions/{id}", h.handleStatus)
	r.Delete("/proof/sessions/{id}", h.handleClose)
	r.Post("/proof/sessions/{id}/reset", h.handleReset)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StartSessionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	sessionID, err := req.ParsedSessionID()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	started, err := h.sessions.Start(ctx, flows.Kind(req.Flow), sessionID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to start proof session",
			"request_id", requestID,
			"flow", req.Flow,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toStartResponse(started))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	st, err := h.sessions.Status(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(st))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Close(ctx, sessionID); err != nil {
		h.logger.WarnContext(ctx, "failed to close proof session",
			"request_id", middleware.GetRequestID(ctx),
			"session_id", sessionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, ok := h.sessionIDParam(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Reset(sessionID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	st, err := h.sessions.Status(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatusResponse(st))
}

func (h *Handler) sessionIDParam(w http.ResponseWriter, r *http.Request) (id.SessionID, bool) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.SessionID{}, false
	}
	return sessionID, true
}
