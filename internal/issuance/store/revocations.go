package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	"proofbridge/pkg/platform/sentinel"
)

// InMemoryRevocationStore keeps revocation handles by revocation id.
type InMemoryRevocationStore struct {
	mu      sync.RWMutex
	handles map[string]models.RevocationHandle
}

func NewInMemoryRevocationStore() *InMemoryRevocationStore {
	return &InMemoryRevocationStore{handles: make(map[string]models.RevocationHandle)}
}

// Save stores or overwrites a handle.
func (s *InMemoryRevocationStore) Save(_ context.Context, handle models.RevocationHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[handle.RevocationID] = handle
	return nil
}

func (s *InMemoryRevocationStore) FindByCredentialID(_ context.Context, credentialID id.CredentialID) (*models.RevocationHandle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.handles {
		if h.CredentialID == credentialID {
			return &h, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// PostgresRevocationStore persists revocation handles in PostgreSQL.
type PostgresRevocationStore struct {
	db *sql.DB
}

func NewPostgresRevocationStore(db *sql.DB) *PostgresRevocationStore {
	return &PostgresRevocationStore{db: db}
}

func (s *PostgresRevocationStore) Save(ctx context.Context, handle models.RevocationHandle) error {
	query := `
		INSERT INTO revocation_handles (revocation_id, credential_id, type, holder, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (revocation_id) DO UPDATE SET
			credential_id = EXCLUDED.credential_id,
			type = EXCLUDED.type,
			holder = EXCLUDED.holder
	`
	_, err := s.db.ExecContext(ctx, query,
		handle.RevocationID,
		handle.CredentialID.String(),
		string(handle.Type),
		handle.Holder,
		handle.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save revocation handle: %w", err)
	}
	return nil
}

func (s *PostgresRevocationStore) FindByCredentialID(ctx context.Context, credentialID id.CredentialID) (*models.RevocationHandle, error) {
	query := `
		SELECT revocation_id, credential_id, type, holder, created_at
		FROM revocation_handles
		WHERE credential_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		handle   models.RevocationHandle
		credID   string
		credType string
	)
	err := s.db.QueryRowContext(ctx, query, credentialID.String()).
		Scan(&handle.RevocationID, &credID, &credType, &handle.Holder, &handle.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find revocation handle: %w", err)
	}
	handle.CredentialID = id.CredentialID(credID)
	handle.Type = models.CredentialType(credType)
	handle.CreatedAt = handle.CreatedAt.UTC()
	return &handle, nil
}
