// Package state holds the verification state each proof session publishes for
// its flow. State is scoped by session id so concurrent page contexts never
// observe each other's results. Writes are last-write-wins.
package state

import (
	"context"
	"sync"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/proof/models"
	id "proofbridge/pkg/domain"
)

// Store is the session-scoped verification state.
// A scope that was never written reads as {Verified: false, RetrievedData: nil}.
type Store interface {
	Get(ctx context.Context, sessionID id.SessionID) (models.VerificationState, error)
	SetVerified(ctx context.Context, sessionID id.SessionID, verified bool) error
	SetRetrievedData(ctx context.Context, sessionID id.SessionID, bundle *cmodels.Bundle) error
	Reset(ctx context.Context, sessionID id.SessionID) error
}

// InMemoryStore keeps scopes in process memory.
type InMemoryStore struct {
	mu     sync.RWMutex
	scopes map[id.SessionID]models.VerificationState
}

// NewInMemoryStore constructs an empty in-memory state store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{scopes: make(map[id.SessionID]models.VerificationState)}
}

func (s *InMemoryStore) Get(_ context.Context, sessionID id.SessionID) (models.VerificationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes[sessionID], nil
}

func (s *InMemoryStore) SetVerified(_ context.Context, sessionID id.SessionID, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scopes[sessionID]
	scope.Verified = verified
	s.scopes[sessionID] = scope
	return nil
}

func (s *InMemoryStore) SetRetrievedData(_ context.Context, sessionID id.SessionID, bundle *cmodels.Bundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := s.scopes[sessionID]
	scope.RetrievedData = bundle
	s.scopes[sessionID] = scope
	return nil
}

func (s *InMemoryStore) Reset(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopes, sessionID)
	return nil
}

// Len returns the number of live scopes.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scopes)
}

var _ Store = (*InMemoryStore)(nil)
