package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"proofbridge/internal/issuance/models"
	id "proofbridge/pkg/domain"
	"proofbridge/pkg/platform/sentinel"
	"proofbridge/pkg/testutil"
)

type InMemoryStoreSuite struct {
	suite.Suite
	records     *InMemoryRecordStore
	revocations *InMemoryRevocationStore
	latest      *InMemoryLatestCache
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.records = NewInMemoryRecordStore()
	s.revocations = NewInMemoryRevocationStore()
	s.latest = NewInMemoryLatestCache()
}

func record(sessionID id.SessionID, key string, issuedAt time.Time) models.IssuedCredentialRecord {
	return models.IssuedCredentialRecord{
		ID:             id.NewCredentialID(),
		Type:           models.TypeBankIdentity,
		SessionID:      sessionID,
		Holder:         "did:example:alice",
		Body:           json.RawMessage(`{"jwt":"x"}`),
		IdempotencyKey: key,
		IssuedAt:       issuedAt,
	}
}

func (s *InMemoryStoreSuite) TestSaveAndFindByIdempotencyKey() {
	ctx := context.Background()
	rec := record(testutil.TestIDs.SessionID1, "k1", time.Now())
	s.Require().NoError(s.records.Save(ctx, rec))

	found, err := s.records.FindByIdempotencyKey(ctx, "k1")
	s.Require().NoError(err)
	s.Equal(rec, *found)

	_, err = s.records.FindByIdempotencyKey(ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestDuplicateKeyConflicts() {
	ctx := context.Background()
	s.Require().NoError(s.records.Save(ctx, record(testutil.TestIDs.SessionID1, "k1", time.Now())))
	err := s.records.Save(ctx, record(testutil.TestIDs.SessionID1, "k1", time.Now()))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestConcurrentSaveSameKeyKeepsOne() {
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	conflicts := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.records.Save(ctx, record(testutil.TestIDs.SessionID1, "shared", time.Now()))
			if errors.Is(err, sentinel.ErrConflict) {
				mu.Lock()
				conflicts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(19, conflicts)
	list, err := s.records.ListBySession(ctx, testutil.TestIDs.SessionID1)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *InMemoryStoreSuite) TestListBySessionIsScopedAndOrdered() {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := record(testutil.TestIDs.SessionID1, "b", base.Add(time.Minute))
	earlier := record(testutil.TestIDs.SessionID1, "a", base)
	other := record(testutil.TestIDs.SessionID2, "c", base)
	for _, r := range []models.IssuedCredentialRecord{later, earlier, other} {
		s.Require().NoError(s.records.Save(ctx, r))
	}

	list, err := s.records.ListBySession(ctx, testutil.TestIDs.SessionID1)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("a", list[0].IdempotencyKey)
	s.Equal("b", list[1].IdempotencyKey)
}

func (s *InMemoryStoreSuite) TestRevocationHandles() {
	ctx := context.Background()
	credID := id.NewCredentialID()
	s.Require().NoError(s.revocations.Save(ctx, models.RevocationHandle{
		RevocationID: "rev-1",
		CredentialID: credID,
		Type:         models.TypeCreditScore,
	}))

	found, err := s.revocations.FindByCredentialID(ctx, credID)
	s.Require().NoError(err)
	s.Equal("rev-1", found.RevocationID)

	_, err = s.revocations.FindByCredentialID(ctx, id.NewCredentialID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestLatestCacheOverwrites() {
	ctx := context.Background()
	_, err := s.latest.Get(ctx, "alice")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.latest.Put(ctx, "alice", json.RawMessage(`{"v":1}`)))
	s.Require().NoError(s.latest.Put(ctx, "alice", json.RawMessage(`{"v":2}`)))

	body, err := s.latest.Get(ctx, "alice")
	s.Require().NoError(err)
	s.JSONEq(`{"v":2}`, string(body))
}

func (s *InMemoryStoreSuite) TestLatestKey() {
	s.Equal("revokableCredential:did:example:alice", LatestKey("did:example:alice"))
}
