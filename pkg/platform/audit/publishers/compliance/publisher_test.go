package compliance

import (
	"context"
	"errors"
	"testing"

	audit "geoseal/pkg/platform/audit"
	"geoseal/pkg/platform/audit/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	audit.Store
	err error
}

func (s failingStore) Append(_ context.Context, _ audit.Event) error {
	return s.err
}

func TestEmit_PersistsThroughStore(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		OwnerID:  "owner-1",
		RecordID: "rec-1",
		Action:   string(audit.EventRecordRegistered),
		Decision: "registered",
	})
	require.NoError(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero(), "Emit fills a zero timestamp")
}

func TestEmit_MissingFieldsRejected(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	tests := []struct {
		name  string
		event audit.ComplianceEvent
	}{
		{"no owner", audit.ComplianceEvent{RecordID: "rec-1", Action: string(audit.EventRecordRegistered)}},
		{"no record", audit.ComplianceEvent{OwnerID: "owner-1", Action: string(audit.EventRecordRegistered)}},
		{"no action", audit.ComplianceEvent{OwnerID: "owner-1", RecordID: "rec-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, pub.Emit(context.Background(), tt.event))
		})
	}
}

func TestEmit_StoreFailureSurfaces(t *testing.T) {
	boom := errors.New("outbox down")
	pub := New(failingStore{err: boom})

	err := pub.Emit(context.Background(), audit.ComplianceEvent{
		OwnerID:  "owner-1",
		RecordID: "rec-1",
		Action:   string(audit.EventRecordRegistered),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
