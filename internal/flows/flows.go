// Package flows wires proof sessions to the relying-party journeys: loan and
// apartment application prefill, and bank account opening with credential
// issuance. Each flow owns one session scope in the verification state store.
package flows

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proofbridge/internal/credential/extract"
	cmodels "proofbridge/internal/credential/models"
	imodels "proofbridge/internal/issuance/models"
	pmodels "proofbridge/internal/proof/models"
	"proofbridge/internal/proof/session"
	"proofbridge/internal/proof/state"
	id "proofbridge/pkg/domain"
	dErrors "proofbridge/pkg/domain-errors"
)

// Kind names a relying-party journey.
type Kind string

const (
	KindLoan            Kind = "loan"
	KindLoanCreditScore Kind = "loan_credit_score"
	KindApartment       Kind = "apartment"
	KindBankAccount     Kind = "bank_account"
)

// Templates are the proof template ids registered at the verification service.
type Templates struct {
	Loan        string
	CreditScore string
	Biometric   string
	BankBio     string
}

// Definitions returns the proof request each flow kind starts.
func Definitions(t Templates) map[Kind]pmodels.ProofRequest {
	return map[Kind]pmodels.ProofRequest{
		KindLoan: {
			TemplateID:  t.Loan,
			QRText:      "Scan with your wallet to share your verified name and address.",
			QRTextAfter: "Your details have been filled in from your credentials.",
		},
		KindLoanCreditScore: {
			TemplateID:  t.CreditScore,
			QRText:      "Share your credit score to complete the loan application.",
			QRTextAfter: "Credit score received.",
		},
		KindApartment: {
			TemplateID:          t.BankBio,
			QRText:              "Share your bank identity and biometric credentials to apply.",
			QRTextAfter:         "Your application has been prefilled.",
			FilteredCredentials: []string{"biometric", "loan"},
			Required:            true,
		},
		KindBankAccount: {
			TemplateID:  t.Biometric,
			QRText:      "Verify your biometric enrollment to open the account.",
			QRTextAfter: "Identity verified. Issuing your credentials.",
		},
	}
}

// Issuance is the issuance pipeline port.
type Issuance interface {
	IssueAll(ctx context.Context, reqs []imodels.IssueRequest) ([]imodels.IssueResult, error)
}

// Flow is one page context: a kind, its proof session controller and the
// at-most-once bank issuance outcome.
type Flow struct {
	id         id.SessionID
	controller *session.Controller

	// openMu serializes session replacement on this scope.
	openMu sync.Mutex

	mu       sync.Mutex
	kind     Kind
	lastSeen time.Time

	// bankMu serializes bank account opening for this flow.
	bankMu      sync.Mutex
	bankOutcome *BankAccountOutcome
	creditScore *int
}

func (f *Flow) ID() id.SessionID { return f.id }

func (f *Flow) Kind() Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kind
}

func (f *Flow) touch(now time.Time) {
	f.mu.Lock()
	f.lastSeen = now
	f.mu.Unlock()
}

func (f *Flow) idleSince() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}

// Status is a flow's session snapshot plus its published verification state.
type Status struct {
	Kind    Kind
	Session pmodels.Session
	State   pmodels.VerificationState
}

// Registry owns the open flows of this process.
type Registry struct {
	definitions map[Kind]pmodels.ProofRequest
	verifier    session.Verifier
	store       state.Store
	issuance    Issuance
	sessionCfg  session.Config
	sessionOpts []session.Option
	logger      *slog.Logger
	now         func() time.Time
	scoreSource func() int

	mu    sync.Mutex
	flows map[id.SessionID]*Flow
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithSessionOptions passes options to every controller the registry creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(r *Registry) {
		r.sessionOpts = append(r.sessionOpts, opts...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithCreditScoreSource overrides how the bank flow draws a credit score.
func WithCreditScoreSource(src func() int) Option {
	return func(r *Registry) {
		r.scoreSource = src
	}
}

// NewRegistry creates a flow registry.
func NewRegistry(
	definitions map[Kind]pmodels.ProofRequest,
	verifier session.Verifier,
	store state.Store,
	issuance Issuance,
	sessionCfg session.Config,
	opts ...Option,
) *Registry {
	r := &Registry{
		definitions: definitions,
		verifier:    verifier,
		store:       store,
		issuance:    issuance,
		sessionCfg:  sessionCfg,
		logger:      slog.Default(),
		now:         time.Now,
		flows:       make(map[id.SessionID]*Flow),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scoreSource == nil {
		r.scoreSource = defaultCreditScore
	}
	return r
}

// Open starts (or joins) the proof session of a flow. An empty sessionID opens
// a new scope. Re-opening a pending flow of the same kind returns the running
// session; a different kind replaces it.
func (r *Registry) Open(ctx context.Context, kind Kind, sessionID id.SessionID) (*Flow, *session.Handle, error) {
	req, ok := r.definitions[kind]
	if !ok {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "unknown flow "+string(kind))
	}
	if sessionID.IsNil() {
		sessionID = id.NewSessionID()
	}

	f, created := r.getOrCreate(sessionID, kind)
	f.openMu.Lock()
	defer f.openMu.Unlock()
	f.touch(r.now())

	if created || !f.joins(req) {
		if err := r.replaceSession(ctx, f); err != nil {
			return f, nil, err
		}
	}

	h, err := f.controller.Start(ctx, req)
	if err != nil {
		return f, nil, err
	}
	f.mu.Lock()
	f.kind = kind
	f.mu.Unlock()
	return f, h, nil
}

// joins reports whether req would attach to the flow's pending session.
func (f *Flow) joins(req pmodels.ProofRequest) bool {
	snap := f.controller.Snapshot()
	return snap.Status == pmodels.StatusPending && snap.Request.TemplateID == req.TemplateID
}

// replaceSession stops the flow's current session and clears everything it
// left behind: the scope's verification state and the bank outcome.
// Callers hold f.openMu.
func (r *Registry) replaceSession(ctx context.Context, f *Flow) error {
	f.controller.Cancel()
	if err := r.store.Reset(ctx, f.id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset verification state")
	}
	f.bankMu.Lock()
	f.bankOutcome = nil
	f.creditScore = nil
	f.bankMu.Unlock()
	return nil
}

func (r *Registry) getOrCreate(sessionID id.SessionID, kind Kind) (*Flow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.flows[sessionID]; ok {
		return f, false
	}
	now := r.now()
	f := &Flow{
		id:         sessionID,
		kind:       kind,
		controller: session.New(sessionID, r.verifier, r.store, r.sessionCfg, r.sessionOpts...),
		lastSeen:   now,
	}
	r.flows[sessionID] = f
	r.logger.Info("flow opened", "session_id", sessionID.String(), "flow", string(kind))
	return f, true
}

// Started describes the running session of a flow to API callers.
type Started struct {
	SessionID  id.SessionID
	Kind       Kind
	TemplateID string
	RequestID  string
	QRPayload  string
	Status     pmodels.Status
}

// Start opens the flow and returns a description of its session.
func (r *Registry) Start(ctx context.Context, kind Kind, sessionID id.SessionID) (*Started, error) {
	f, h, err := r.Open(ctx, kind, sessionID)
	if err != nil {
		return nil, err
	}
	return &Started{
		SessionID:  f.ID(),
		Kind:       kind,
		TemplateID: h.TemplateID(),
		RequestID:  h.RequestID(),
		QRPayload:  h.QRPayload(),
		Status:     h.Status(),
	}, nil
}

// Get returns an open flow.
func (r *Registry) Get(sessionID id.SessionID) (*Flow, error) {
	r.mu.Lock()
	f, ok := r.flows[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "flow not found")
	}
	f.touch(r.now())
	return f, nil
}

// Status returns the flow's session snapshot and its verification state.
func (r *Registry) Status(ctx context.Context, sessionID id.SessionID) (*Status, error) {
	f, err := r.Get(sessionID)
	if err != nil {
		return nil, err
	}
	st, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification state")
	}
	return &Status{Kind: f.Kind(), Session: f.controller.Snapshot(), State: st}, nil
}

// Reset returns the flow's session to idle. The verification state scope is kept.
func (r *Registry) Reset(sessionID id.SessionID) error {
	f, err := r.Get(sessionID)
	if err != nil {
		return err
	}
	f.controller.Reset()
	return nil
}

// Close tears a flow down: its poll loop is stopped before its state scope is
// reset, so no write lands in the scope afterwards.
func (r *Registry) Close(ctx context.Context, sessionID id.SessionID) error {
	r.mu.Lock()
	f, ok := r.flows[sessionID]
	delete(r.flows, sessionID)
	r.mu.Unlock()
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "flow not found")
	}

	f.openMu.Lock()
	defer f.openMu.Unlock()
	f.controller.Cancel()
	if err := r.store.Reset(ctx, sessionID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset verification state")
	}
	r.logger.InfoContext(ctx, "flow closed", "session_id", sessionID.String(), "flow", string(f.Kind()))
	return nil
}

// CloseIdle closes flows not touched since cutoff and returns how many were closed.
func (r *Registry) CloseIdle(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	var idle []id.SessionID
	for sid, f := range r.flows {
		if f.idleSince().Before(cutoff) {
			idle = append(idle, sid)
		}
	}
	r.mu.Unlock()

	closed := 0
	for _, sid := range idle {
		err := r.Close(ctx, sid)
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			continue
		}
		if err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// Len returns the number of open flows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// CloseAll stops every flow. Used on shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	ids := make([]id.SessionID, 0, len(r.flows))
	for sid := range r.flows {
		ids = append(ids, sid)
	}
	r.mu.Unlock()
	for _, sid := range ids {
		if err := r.Close(ctx, sid); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			r.logger.WarnContext(ctx, "failed to close flow on shutdown", "session_id", sid.String(), "error", err)
		}
	}
}

// Applicant prefills the application form from the flow's verified bundle.
func (r *Registry) Applicant(ctx context.Context, sessionID id.SessionID) (cmodels.ApplicantFieldSet, error) {
	bundle, err := r.verifiedBundle(ctx, sessionID)
	if err != nil {
		return cmodels.ApplicantFieldSet{}, err
	}
	fields, ok := extract.ApplicantFromBundle(bundle)
	if !ok {
		return cmodels.ApplicantFieldSet{}, dErrors.New(dErrors.CodeMissingEvidence, "no credential with an address was shared")
	}
	return fields, nil
}

func (r *Registry) verifiedBundle(ctx context.Context, sessionID id.SessionID) (*cmodels.Bundle, error) {
	if _, err := r.Get(sessionID); err != nil {
		return nil, err
	}
	st, err := r.store.Get(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load verification state")
	}
	if !st.Verified {
		return nil, dErrors.New(dErrors.CodeNotVerified, "proof session is not verified")
	}
	return st.RetrievedData, nil
}
