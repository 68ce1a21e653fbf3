// Package record persists ledger records. Two implementations share one
// contract: InMemory for tests and single-node development, Postgres for
// production. Both return sentinel errors; services translate them into
// domain errors at the boundary.
package record

import (
	"context"
	"fmt"
	"sync"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded map store. It preserves insertion order for
// listings and hands out clones so callers cannot mutate stored state.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
	// byHandle indexes ciphertext handles for decryption authority lookups.
	byHandle map[id.Handle]id.RecordID
	order    []id.RecordID
}

func NewInMemory() *InMemory {
	return &InMemory{
		records:  make(map[id.RecordID]*models.Record),
		byHandle: make(map[id.Handle]id.RecordID),
	}
}

// Insert stores a new record. Returns ErrConflict when the id is already
// taken; the first writer wins and the stored record is never replaced.
func (s *InMemory) Insert(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("record %q: %w", rec.ID, sentinel.ErrConflict)
	}
	s.records[rec.ID] = rec.Clone()
	s.byHandle[rec.CiphertextHandle] = rec.ID
	s.order = append(s.order, rec.ID)
	return nil
}

// FindByID returns a clone of the record, or ErrNotFound.
func (s *InMemory) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %q: %w", recordID, sentinel.ErrNotFound)
	}
	return rec.Clone(), nil
}

// FindByHandle resolves a ciphertext handle back to its record, or ErrNotFound.
func (s *InMemory) FindByHandle(_ context.Context, handle id.Handle) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recordID, ok := s.byHandle[handle]
	if !ok {
		return nil, fmt.Errorf("handle %q: %w", handle, sentinel.ErrNotFound)
	}
	return s.records[recordID].Clone(), nil
}

// Execute atomically validates and mutates a record under the store lock.
// The validate callback sees current state; if it returns nil, mutate runs
// and the result persists. No other writer can interleave between the two.
// Returns a clone of the final state.
func (s *InMemory) Execute(_ context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %q: %w", recordID, sentinel.ErrNotFound)
	}
	if err := validate(rec); err != nil {
		return nil, err
	}
	mutate(rec)
	return rec.Clone(), nil
}

// ListIDs returns all record ids in insertion order.
func (s *InMemory) ListIDs(_ context.Context) ([]id.RecordID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]id.RecordID(nil), s.order...), nil
}

// List returns clones of all records in insertion order.
func (s *InMemory) List(_ context.Context) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Record, 0, len(s.order))
	for _, recordID := range s.order {
		out = append(out, s.records[recordID].Clone())
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records), nil
}
