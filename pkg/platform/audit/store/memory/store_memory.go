// Package memory holds an audit store for tests and local development.
// Events live in process memory, partitioned by owner.
package memory

import (
	"context"
	"sync"

	id "geoseal/pkg/domain"
	audit "geoseal/pkg/platform/audit"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.OwnerID][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.OwnerID][]audit.Event)}
}

// Clear empties the store. Tests call it between cases.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.OwnerID][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.OwnerID] = append(s.events[event.OwnerID], event)
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner id.OwnerID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[owner]...), nil
}

// ListAll returns every event across all owners (operator-only).
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(), nil
}

// ListRecent returns up to limit events across all owners (operator-only).
// Insertion order stands in for timestamp order here; the postgres store
// sorts properly.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.collectLocked()
	if start := len(all) - limit; start > 0 {
		all = all[start:]
	}
	return all, nil
}

func (s *InMemoryStore) collectLocked() []audit.Event {
	var all []audit.Event
	for _, ownerEvents := range s.events {
		all = append(all, ownerEvents...)
	}
	return all
}
