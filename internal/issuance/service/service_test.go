package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Issuer,RecordStore,RevocationStore,LatestCache,EventPublisher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	cmodels "proofbridge/internal/credential/models"
	"proofbridge/internal/issuance/builders"
	"proofbridge/internal/issuance/metrics"
	"proofbridge/internal/issuance/models"
	"proofbridge/internal/issuance/service/mocks"
	"proofbridge/internal/issuance/store"
	dErrors "proofbridge/pkg/domain-errors"
	"proofbridge/pkg/platform/sentinel"
	"proofbridge/pkg/platform/upstream"
	"proofbridge/pkg/testutil"
)

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	issuer      *mocks.MockIssuer
	events      *mocks.MockEventPublisher
	records     *store.InMemoryRecordStore
	revocations *store.InMemoryRevocationStore
	latest      *store.InMemoryLatestCache
	metrics     *metrics.Metrics
	service     *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.issuer = mocks.NewMockIssuer(s.ctrl)
	s.events = mocks.NewMockEventPublisher(s.ctrl)
	s.records = store.NewInMemoryRecordStore()
	s.revocations = store.NewInMemoryRevocationStore()
	s.latest = store.NewInMemoryLatestCache()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = s.newService(s.records, s.revocations)
}

func (s *ServiceSuite) newService(records RecordStore, revocations RevocationStore) *Service {
	return New(s.issuer, records, revocations,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithLatestCache(s.latest),
		WithEventPublisher(s.events),
		WithBuilders(builders.BankIdentity{}, builders.CreditScore{}),
	)
}

func payload() models.Payload {
	score := 742
	return models.Payload{
		SessionID:      testutil.TestIDs.SessionID1,
		ReceiverDID:    "did:example:alice",
		RecipientEmail: "alice@example.com",
		ReceiverName:   "Alice Smith",
		ReceiverAddress: models.Address{
			Street: "1 Main St", City: "Springfield", ZipCode: "94107", State: "CA",
		},
		CreditScore: &score,
		Biometric:   &cmodels.BiometricLink{ID: "bio-1", CreatedAt: testutil.FixedIssuanceDate},
	}
}

func issued(revocationID string) *models.IssuedResponse {
	return &models.IssuedResponse{Record: json.RawMessage(`{"jwt":"signed"}`), RevocationID: revocationID}
}

func (s *ServiceSuite) TestMissingBiometricRefusesBeforeServiceCall() {
	p := payload()
	p.Biometric = nil

	// No EXPECT on the issuer: any call fails the test.
	_, err := s.service.Issue(context.Background(), builders.BankIdentity{}, p, false)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeMissingEvidence))
	s.Equal("biometric proof missing", err.Error())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Failed.WithLabelValues("BankIdentity", "missing_evidence")))

	list, _ := s.records.ListBySession(context.Background(), p.SessionID)
	s.Empty(list)
}

func (s *ServiceSuite) TestIssueRevocablePersistsRecordHandleAndCache() {
	ctx := context.Background()
	var sentKey string
	s.issuer.EXPECT().
		IssueCredential(gomock.Any(), gomock.Any(), true, gomock.Any()).
		DoAndReturn(func(_ context.Context, body models.Body, _ bool, key string) (*models.IssuedResponse, error) {
			s.Equal(models.TypeCreditScore, body.Type)
			sentKey = key
			return issued("rev-1"), nil
		})
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil)

	record, err := s.service.Issue(ctx, builders.CreditScore{}, payload(), true)
	s.Require().NoError(err)

	s.Equal(models.TypeCreditScore, record.Type)
	s.True(record.IsRevocable)
	s.Equal("rev-1", record.RevocationID)
	s.Equal("did:example:alice", record.Holder)
	s.Equal(sentKey, record.IdempotencyKey)
	s.JSONEq(`{"jwt":"signed"}`, string(record.Body))

	stored, err := s.records.FindByIdempotencyKey(ctx, sentKey)
	s.Require().NoError(err)
	s.Equal(record.ID, stored.ID)

	handle, err := s.revocations.FindByCredentialID(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("rev-1", handle.RevocationID)

	latest, err := s.service.Latest(ctx, "did:example:alice")
	s.Require().NoError(err)
	s.JSONEq(`{"jwt":"signed"}`, string(latest))

	s.Equal(1.0, promtest.ToFloat64(s.metrics.Issued.WithLabelValues("CreditScore", "true")))
}

func (s *ServiceSuite) TestIssueNonRevocableSkipsHandleAndCache() {
	ctx := context.Background()
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).Return(issued("ignored"), nil)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil)

	record, err := s.service.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().NoError(err)
	s.False(record.IsRevocable)
	s.Empty(record.RevocationID)

	_, err = s.revocations.FindByCredentialID(ctx, record.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.service.Latest(ctx, "did:example:alice")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestRepeatedIssueReusesRecord() {
	ctx := context.Background()
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).Return(issued(""), nil).Times(1)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	first, err := s.service.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().NoError(err)
	second, err := s.service.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Reused.WithLabelValues("BankIdentity")))
}

func (s *ServiceSuite) TestKeysAreScopedBySession() {
	ctx := context.Background()
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).Return(issued(""), nil).Times(2)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	first, err := s.service.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().NoError(err)

	other := payload()
	other.SessionID = testutil.TestIDs.SessionID2
	second, err := s.service.Issue(ctx, builders.BankIdentity{}, other, false)
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.NotEqual(first.IdempotencyKey, second.IdempotencyKey)
}

func (s *ServiceSuite) TestIdempotencyTokenOverridesBodyDigest() {
	ctx := context.Background()
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(issued("rev-1"), nil).Times(1)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	p := payload()
	p.IdempotencyToken = "submit-1"
	first, err := s.service.Issue(ctx, builders.CreditScore{}, p, true)
	s.Require().NoError(err)

	different := 799
	p.CreditScore = &different
	second, err := s.service.Issue(ctx, builders.CreditScore{}, p, true)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
}

func (s *ServiceSuite) TestConcurrentDuplicatesCallServiceOnce() {
	var calls atomic.Int32
	s.issuer.EXPECT().
		IssueCredential(gomock.Any(), gomock.Any(), true, gomock.Any()).
		DoAndReturn(func(context.Context, models.Body, bool, string) (*models.IssuedResponse, error) {
			calls.Add(1)
			time.Sleep(50 * time.Millisecond)
			return issued("rev-1"), nil
		}).
		Times(1)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	ids := make([]string, 10)
	result := testutil.RunConcurrent(10, func(i int) error {
		record, err := s.service.Issue(context.Background(), builders.CreditScore{}, payload(), true)
		if err != nil {
			return err
		}
		ids[i] = record.ID.String()
		return nil
	})

	s.Equal(int32(10), result.Successes)
	s.Equal(int32(1), calls.Load())
	for _, got := range ids {
		s.Equal(ids[0], got)
	}
}

func (s *ServiceSuite) TestIssuerFailuresMapToDomainCodes() {
	cases := []struct {
		name string
		err  error
		code dErrors.Code
	}{
		{"outage", upstream.NewServiceError(upstream.CategoryOutage, "issuer", "503", nil), dErrors.CodeUpstreamFailure},
		{"timeout", upstream.NewServiceError(upstream.CategoryTimeout, "issuer", "deadline", nil), dErrors.CodeTimeout},
		{"malformed", upstream.Malformed("issuer", "missing record", []byte(`{}`), nil), dErrors.CodeMalformedResponse},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tc.err)

			_, err := s.service.Issue(context.Background(), builders.BankIdentity{}, payload(), false)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, tc.code), "got %v", dErrors.CodeOf(err))
		})
	}

	list, _ := s.records.ListBySession(context.Background(), testutil.TestIDs.SessionID1)
	s.Empty(list)
}

func (s *ServiceSuite) TestFailedIssueCanBeRetried() {
	ctx := context.Background()
	gomock.InOrder(
		s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).
			Return(nil, upstream.NewServiceError(upstream.CategoryOutage, "issuer", "503", nil)),
		s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).
			Return(issued(""), nil),
	)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().Error(err)

	record, err := s.service.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().NoError(err)
	s.NotEmpty(record.ID)
}

func (s *ServiceSuite) TestBuilderValidationError() {
	p := payload()
	p.ReceiverName = ""

	_, err := s.service.Issue(context.Background(), builders.BankIdentity{}, p, false)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRevocableWithoutRevocationIDStillSucceeds() {
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(issued(""), nil)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil)

	record, err := s.service.Issue(context.Background(), builders.CreditScore{}, payload(), true)
	s.Require().NoError(err)
	s.True(record.IsRevocable)
	s.Empty(record.RevocationID)
}

func (s *ServiceSuite) TestEventFailureDoesNotFailIssuance() {
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).Return(issued(""), nil)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	_, err := s.service.Issue(context.Background(), builders.BankIdentity{}, payload(), false)
	s.NoError(err)
}

func (s *ServiceSuite) TestRevocationHandleFailureIsCompletedOnRetry() {
	ctx := context.Background()
	revocations := mocks.NewMockRevocationStore(s.ctrl)
	svc := s.newService(s.records, revocations)

	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), true, gomock.Any()).Return(issued("rev-7"), nil).Times(1)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	gomock.InOrder(
		revocations.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down")),
		revocations.EXPECT().Save(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, h models.RevocationHandle) error {
				s.Equal("rev-7", h.RevocationID)
				return nil
			}),
	)

	_, err := svc.Issue(ctx, builders.CreditScore{}, payload(), true)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	record, err := svc.Issue(ctx, builders.CreditScore{}, payload(), true)
	s.Require().NoError(err)
	s.Equal("rev-7", record.RevocationID)
}

func (s *ServiceSuite) TestSaveConflictReturnsWinningRecord() {
	ctx := context.Background()
	records := mocks.NewMockRecordStore(s.ctrl)
	svc := s.newService(records, s.revocations)

	winner := &models.IssuedCredentialRecord{ID: "cred_winner", Type: models.TypeBankIdentity}
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).Return(issued(""), nil)
	gomock.InOrder(
		records.EXPECT().FindByIdempotencyKey(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound),
		records.EXPECT().Save(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict),
		records.EXPECT().FindByIdempotencyKey(gomock.Any(), gomock.Any()).Return(winner, nil),
	)

	record, err := svc.Issue(ctx, builders.BankIdentity{}, payload(), false)
	s.Require().NoError(err)
	s.Equal(winner.ID, record.ID)
}

func (s *ServiceSuite) TestStoreLookupFailureIsInternal() {
	records := mocks.NewMockRecordStore(s.ctrl)
	svc := s.newService(records, s.revocations)
	records.EXPECT().FindByIdempotencyKey(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := svc.Issue(context.Background(), builders.BankIdentity{}, payload(), false)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestIssueAllIsSequentialWithoutRollback() {
	ctx := context.Background()
	gomock.InOrder(
		s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), false, gomock.Any()).
			DoAndReturn(func(_ context.Context, body models.Body, _ bool, _ string) (*models.IssuedResponse, error) {
				s.Equal(models.TypeBankIdentity, body.Type)
				return issued(""), nil
			}),
		s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), true, gomock.Any()).
			Return(nil, upstream.NewServiceError(upstream.CategoryOutage, "issuer", "503", nil)),
	)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	p := payload()
	results, err := s.service.IssueAll(ctx, []models.IssueRequest{
		{Type: models.TypeBankIdentity, Payload: p, Revocable: false},
		{Type: models.TypeCreditScore, Payload: p, Revocable: true},
		{Type: models.TypeBankIdentity, Payload: p, Revocable: false},
	})

	s.Require().Error(err)
	s.Require().Len(results, 2)
	s.NoError(results[0].Err)
	s.NotNil(results[0].Record)
	s.Error(results[1].Err)

	list, _ := s.records.ListBySession(ctx, p.SessionID)
	s.Len(list, 1, "bank identity stays issued after credit score fails")
}

func (s *ServiceSuite) TestIssueAllUnknownType() {
	results, err := s.service.IssueAll(context.Background(), []models.IssueRequest{
		{Type: "Passport", Payload: payload()},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Len(results, 1)
}

func (s *ServiceSuite) TestListBySession() {
	ctx := context.Background()
	s.issuer.EXPECT().IssueCredential(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(issued("rev-1"), nil).Times(2)
	s.events.EXPECT().CredentialIssued(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	results, err := s.service.IssueAll(ctx, []models.IssueRequest{
		{Type: models.TypeBankIdentity, Payload: payload()},
		{Type: models.TypeCreditScore, Payload: payload(), Revocable: true},
	})
	s.Require().NoError(err)
	s.Len(results, 2)

	list, err := s.service.ListBySession(ctx, testutil.TestIDs.SessionID1)
	s.Require().NoError(err)
	s.Len(list, 2)
}
