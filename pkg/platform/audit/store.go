package audit

import (
	"context"

	id "geoseal/pkg/domain"
)

// Store persists audit events. Implementations decide durability: the postgres
// store writes through the transactional outbox, the memory store backs tests
// and local development.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByOwner(ctx context.Context, owner id.OwnerID) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
