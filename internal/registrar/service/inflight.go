package service

import (
	"sync"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

// inflight marks record ids with a flow currently running so a concurrent
// duplicate invocation is rejected instead of racing the ledger. Create and
// reveal share the marker: the ledger serializes writes per record anyway,
// rejecting early just spares the caller a doomed capability round trip.
type inflight struct {
	mu     sync.Mutex
	active map[id.RecordID]struct{}
}

func newInflight() *inflight {
	return &inflight{active: make(map[id.RecordID]struct{})}
}

// begin claims the record id for the calling flow. Returns CodeConflict when
// another flow already holds it.
func (f *inflight) begin(recordID id.RecordID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.active[recordID]; ok {
		return dErrors.New(dErrors.CodeConflict, "another operation for this record is in progress")
	}
	f.active[recordID] = struct{}{}
	return nil
}

// end releases the claim. Safe to call for an id that was never claimed.
func (f *inflight) end(recordID id.RecordID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.active, recordID)
}
