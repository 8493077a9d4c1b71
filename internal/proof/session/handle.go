package session

import (
	"proofbridge/internal/proof/models"
	id "proofbridge/pkg/domain"
)

// Handle refers to one started proof session. It stays valid after the
// session ends; Status then reports the final state.
type Handle struct {
	controller *Controller
	sessionID  id.SessionID
	templateID string
	requestID  string
	qrPayload  string
	cancel     func()
	done       chan struct{}

	// status is guarded by controller.mu.
	status models.Status
}

func (h *Handle) SessionID() id.SessionID { return h.sessionID }
func (h *Handle) TemplateID() string      { return h.templateID }
func (h *Handle) RequestID() string       { return h.requestID }

// QRPayload is the text rendered as the QR code for the wallet.
func (h *Handle) QRPayload() string { return h.qrPayload }

// Done is closed when the poll loop exits for any reason.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Status returns the status of this session, which may differ from the
// controller's if the controller has since started another one.
func (h *Handle) Status() models.Status {
	h.controller.mu.RLock()
	defer h.controller.mu.RUnlock()
	return h.status
}

// Cancel stops this session's polling and waits for the loop to exit.
// Cancelling a superseded handle has no effect on the controller's current session.
func (h *Handle) Cancel() {
	c := h.controller
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.stop(h)
}
