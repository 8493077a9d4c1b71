package handler

import (
	"time"

	"proofbridge/internal/flows"
)

type StartSessionResponse struct {
	SessionID  string `json:"session_id"`
	Flow       string `json:"flow"`
	TemplateID string `json:"template_id"`
	RequestID  string `json:"request_id"`
	QRPayload  string `json:"qr_payload"`
	Status     string `json:"status"`
}

type SessionStatusResponse struct {
	SessionID   string     `json:"session_id"`
	Flow        string     `json:"flow"`
	Status      string     `json:"status"`
	TemplateID  string     `json:"template_id,omitempty"`
	QRPayload   string     `json:"qr_payload,omitempty"`
	QRTextAfter string     `json:"qr_text_after,omitempty"`
	Verified    bool       `json:"verified"`
	Credentials int        `json:"credentials"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func toStartResponse(s *flows.Started) StartSessionResponse {
	return StartSessionResponse{
		SessionID:  s.SessionID.String(),
		Flow:       string(s.Kind),
		TemplateID: s.TemplateID,
		RequestID:  s.RequestID,
		QRPayload:  s.QRPayload,
		Status:     string(s.Status),
	}
}

func toStatusResponse(st *flows.Status) SessionStatusResponse {
	sess := st.Session
	resp := SessionStatusResponse{
		SessionID:   sess.ID.String(),
		Flow:        string(st.Kind),
		Status:      string(sess.Status),
		TemplateID:  sess.Request.TemplateID,
		QRPayload:   sess.QRPayload,
		Verified:    st.State.Verified,
		Credentials: st.State.RetrievedData.Len(),
		StartedAt:   optionalTime(sess.StartedAt),
		FinishedAt:  optionalTime(sess.FinishedAt),
		Error:       sess.Err,
	}
	if st.State.Verified {
		resp.QRTextAfter = sess.Request.QRTextAfter
	}
	return resp
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
