package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	"proofbridge/pkg/platform/sentinel"
)

// PostgresRecordStore persists issued records in PostgreSQL.
type PostgresRecordStore struct {
	db *sql.DB
}

func NewPostgresRecordStore(db *sql.DB) *PostgresRecordStore {
	return &PostgresRecordStore{db: db}
}

// Save inserts a record; the unique idempotency key index turns a duplicate into a conflict.
func (s *PostgresRecordStore) Save(ctx context.Context, record models.IssuedCredentialRecord) error {
	query := `
		INSERT INTO issued_credentials (id, type, session_id, holder, body, is_revocable, revocation_id, idempotency_key, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		record.ID.String(),
		string(record.Type),
		uuid.UUID(record.SessionID),
		record.Holder,
		[]byte(record.Body),
		record.IsRevocable,
		sql.NullString{String: record.RevocationID, Valid: record.RevocationID != ""},
		record.IdempotencyKey,
		record.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("save issued credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save issued credential: %w", err)
	}
	if affected == 0 {
		return errDuplicateKey(record.IdempotencyKey)
	}
	return nil
}

func (s *PostgresRecordStore) FindByIdempotencyKey(ctx context.Context, key string) (*models.IssuedCredentialRecord, error) {
	query := `
		SELECT id, type, session_id, holder, body, is_revocable, revocation_id, idempotency_key, issued_at
		FROM issued_credentials
		WHERE idempotency_key = $1
	`
	record, err := scanRecord(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find issued credential by idempotency key: %w", err)
	}
	return &record, nil
}

func (s *PostgresRecordStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]models.IssuedCredentialRecord, error) {
	query := `
		SELECT id, type, session_id, holder, body, is_revocable, revocation_id, idempotency_key, issued_at
		FROM issued_credentials
		WHERE session_id = $1
		ORDER BY issued_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list issued credentials: %w", err)
	}
	defer rows.Close()

	var out []models.IssuedCredentialRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issued credential: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issued credentials: %w", err)
	}
	return out, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (models.IssuedCredentialRecord, error) {
	var (
		record       models.IssuedCredentialRecord
		credentialID string
		credType     string
		sessionID    uuid.UUID
		body         []byte
		revocationID sql.NullString
	)
	if err := row.Scan(&credentialID, &credType, &sessionID, &record.Holder, &body,
		&record.IsRevocable, &revocationID, &record.IdempotencyKey, &record.IssuedAt); err != nil {
		return models.IssuedCredentialRecord{}, err
	}
	record.ID = id.CredentialID(credentialID)
	record.Type = models.CredentialType(credType)
	record.SessionID = id.SessionID(sessionID)
	record.Body = body
	record.RevocationID = revocationID.String
	record.IssuedAt = record.IssuedAt.UTC()
	return record, nil
}
