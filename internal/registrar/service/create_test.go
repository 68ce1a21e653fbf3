package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"geoseal/internal/fhe"
	"geoseal/internal/ledger/models"
	ledger "geoseal/internal/ledger/service"
	"geoseal/internal/registrar/service/mocks"
	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

type testService struct {
	svc       *Service
	ledger    *mocks.MockLedger
	encrypter *mocks.MockEncrypter
	revealer  *mocks.MockRevealer
	cache     *mocks.MockListingCache
	ops       *mocks.MockOpsTracker
}

func newTestService(t *testing.T, opts ...Option) *testService {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	ts := &testService{
		ledger:    mocks.NewMockLedger(ctrl),
		encrypter: mocks.NewMockEncrypter(ctrl),
		revealer:  mocks.NewMockRevealer(ctrl),
		cache:     mocks.NewMockListingCache(ctrl),
		ops:       mocks.NewMockOpsTracker(ctrl),
	}
	opts = append([]Option{
		WithListingCache(ts.cache),
		WithOpsTracker(ts.ops),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	ts.svc = New(ts.ledger, ts.encrypter, ts.revealer, opts...)
	return ts
}

func validCreateInput() CreateInput {
	return CreateInput{
		RecordID:  "loc-1",
		Label:     "Rex",
		Owner:     "owner-1",
		Latitude:  40712800,
		Longitude: -74006000,
	}
}

func testCiphertext() *fhe.Ciphertext {
	return &fhe.Ciphertext{
		Handle: "a1b2",
		Bytes:  []byte("sealed-latitude"),
		Proof:  []byte("input-proof"),
	}
}

func testRecord(t *testing.T, recordID id.RecordID, handle id.Handle) *models.Record {
	t.Helper()
	rec, err := models.NewRecord(recordID, "Rex", "owner-1", handle, []byte("sealed-latitude"), -74006000, time.Now().UTC())
	require.NoError(t, err)
	return rec
}

func TestCreateRecord_Commits(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()
	rec := testRecord(t, input.RecordID, ct.Handle)

	ts.encrypter.EXPECT().
		Encrypt(gomock.Any(), input.Owner, input.Latitude).
		Return(ct, nil)
	ts.ledger.EXPECT().
		Register(gomock.Any(), ledger.RegisterInput{
			RecordID:    input.RecordID,
			Label:       input.Label,
			Owner:       input.Owner,
			Handle:      ct.Handle,
			Ciphertext:  ct.Bytes,
			InputProof:  ct.Proof,
			PublicCoord: input.Longitude,
		}).
		Return(rec, nil)
	ts.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)

	got, err := ts.svc.CreateRecord(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCreateRecord_ValidationBeforeAnyCapabilityCall(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"empty record id", func(in *CreateInput) { in.RecordID = "" }},
		{"empty owner", func(in *CreateInput) { in.Owner = "" }},
		{"blank label", func(in *CreateInput) { in.Label = "   " }},
		{"latitude above range", func(in *CreateInput) { in.Latitude = 90_000_001 }},
		{"latitude below range", func(in *CreateInput) { in.Latitude = -90_000_001 }},
		{"longitude above range", func(in *CreateInput) { in.Longitude = 180_000_001 }},
		{"longitude below range", func(in *CreateInput) { in.Longitude = -180_000_001 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestService(t)
			input := validCreateInput()
			tt.mutate(&input)

			_, err := ts.svc.CreateRecord(context.Background(), input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestCreateRecord_BoundaryCoordinatesAccepted(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	input.Latitude = 90_000_000
	input.Longitude = -180_000_000
	ct := testCiphertext()
	rec := testRecord(t, input.RecordID, ct.Handle)

	ts.encrypter.EXPECT().Encrypt(gomock.Any(), input.Owner, input.Latitude).Return(ct, nil)
	ts.ledger.EXPECT().Register(gomock.Any(), gomock.Any()).Return(rec, nil)
	ts.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)

	_, err := ts.svc.CreateRecord(context.Background(), input)
	require.NoError(t, err)
}

func TestCreateRecord_DuplicateSurfacedWithoutCacheDrop(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()

	ts.encrypter.EXPECT().Encrypt(gomock.Any(), input.Owner, input.Latitude).Return(ct, nil)
	ts.ledger.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeDuplicateRecord, "record id is already registered"))

	_, err := ts.svc.CreateRecord(context.Background(), input)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDuplicateRecord))
}

func TestCreateRecord_EncryptionUnavailableSkipsLedger(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()

	ts.encrypter.EXPECT().
		Encrypt(gomock.Any(), input.Owner, input.Latitude).
		Return(nil, dErrors.New(dErrors.CodeEncryptionUnavailable, "encryption backend is not ready"))

	_, err := ts.svc.CreateRecord(context.Background(), input)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEncryptionUnavailable))
}

func TestCreateRecord_UncodedLedgerFailureIsTransactionFailure(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()
	storeErr := errors.New("pq: connection reset by peer")

	ts.encrypter.EXPECT().Encrypt(gomock.Any(), input.Owner, input.Latitude).Return(ct, nil)
	ts.ledger.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, storeErr)

	_, err := ts.svc.CreateRecord(context.Background(), input)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTxFailed))
	assert.ErrorIs(t, err, storeErr)
}

func TestCreateRecord_AbandonedCallerReportsCancellation(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()
	ctx, cancel := context.WithCancel(context.Background())

	ts.encrypter.EXPECT().Encrypt(gomock.Any(), input.Owner, input.Latitude).Return(ct, nil)
	ts.ledger.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, input ledger.RegisterInput) (*models.Record, error) {
			cancel()
			return nil, errors.New("tx aborted")
		})

	_, err := ts.svc.CreateRecord(ctx, input)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCancelled))
}

func TestCreateRecord_CacheInvalidationFailureDoesNotFailFlow(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()
	rec := testRecord(t, input.RecordID, ct.Handle)

	ts.encrypter.EXPECT().Encrypt(gomock.Any(), input.Owner, input.Latitude).Return(ct, nil)
	ts.ledger.EXPECT().Register(gomock.Any(), gomock.Any()).Return(rec, nil)
	ts.cache.EXPECT().Invalidate(gomock.Any()).Return(errors.New("redis: connection refused"))

	got, err := ts.svc.CreateRecord(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestCreateRecord_ConcurrentDuplicateRejected(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()
	rec := testRecord(t, input.RecordID, ct.Handle)

	started := make(chan struct{})
	release := make(chan struct{})
	ts.encrypter.EXPECT().
		Encrypt(gomock.Any(), input.Owner, input.Latitude).
		DoAndReturn(func(ctx context.Context, owner id.OwnerID, plaintext int64) (*fhe.Ciphertext, error) {
			close(started)
			<-release
			return ct, nil
		})
	ts.ledger.EXPECT().Register(gomock.Any(), gomock.Any()).Return(rec, nil)
	ts.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := ts.svc.CreateRecord(context.Background(), input)
		firstDone <- err
	}()

	<-started
	_, err := ts.svc.CreateRecord(context.Background(), input)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	close(release)
	require.NoError(t, <-firstDone)
}

func TestCreateRecord_GuardReleasedAfterFailure(t *testing.T) {
	ts := newTestService(t)
	input := validCreateInput()
	ct := testCiphertext()
	rec := testRecord(t, input.RecordID, ct.Handle)

	ts.encrypter.EXPECT().
		Encrypt(gomock.Any(), input.Owner, input.Latitude).
		Return(nil, dErrors.New(dErrors.CodeEncryptionUnavailable, "encryption backend is not ready"))

	_, err := ts.svc.CreateRecord(context.Background(), input)
	require.Error(t, err)

	ts.encrypter.EXPECT().Encrypt(gomock.Any(), input.Owner, input.Latitude).Return(ct, nil)
	ts.ledger.EXPECT().Register(gomock.Any(), gomock.Any()).Return(rec, nil)
	ts.cache.EXPECT().Invalidate(gomock.Any()).Return(nil)

	_, err = ts.svc.CreateRecord(context.Background(), input)
	require.NoError(t, err)
}
