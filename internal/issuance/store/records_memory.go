package store

import (
	"context"
	"slices"
	"sync"

	"proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	"proofbridge/pkg/platform/sentinel"
)

// InMemoryRecordStore keeps issued records for tests and single-node use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryRecordStore struct {
	mu    sync.RWMutex
	byKey map[string]models.IssuedCredentialRecord
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{byKey: make(map[string]models.IssuedCredentialRecord)}
}

// Save inserts a record. A second record with the same idempotency key is a conflict.
func (s *InMemoryRecordStore) Save(_ context.Context, record models.IssuedCredentialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[record.IdempotencyKey]; exists {
		return errDuplicateKey(record.IdempotencyKey)
	}
	s.byKey[record.IdempotencyKey] = record
	return nil
}

func (s *InMemoryRecordStore) FindByIdempotencyKey(_ context.Context, key string) (*models.IssuedCredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.byKey[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// ListBySession returns a session's records, oldest first.
func (s *InMemoryRecordStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]models.IssuedCredentialRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.IssuedCredentialRecord
	for _, record := range s.byKey {
		if record.SessionID == sessionID {
			out = append(out, record)
		}
	}
	slices.SortFunc(out, func(a, b models.IssuedCredentialRecord) int {
		return a.IssuedAt.Compare(b.IssuedAt)
	})
	return out, nil
}
