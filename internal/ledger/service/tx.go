package service

import (
	"context"
	"sync"
	"time"

	id "geoseal/pkg/domain"
	dErrors "geoseal/pkg/domain-errors"
)

// StoreTx provides a transactional boundary for ledger writes and their audit
// trail. Implementations may wrap a database transaction or, in-memory, a
// sharded lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// inMemoryStoreTx provides fine-grained locking using sharded mutexes.
// Operations are distributed across N shards based on a hash of the record id,
// so writes to different records never contend.
const numRecordShards = 128

// defaultTxTimeout is the maximum duration for a ledger transaction.
const defaultTxTimeout = 5 * time.Second

type inMemoryStoreTx struct {
	shards  [numRecordShards]sync.Mutex
	timeout time.Duration
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	// Check if context is already cancelled
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	// Apply timeout if not already set
	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shard := t.selectShard(ctx)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	return fn(ctx)
}

// selectShard picks a shard based on the record id from context, or defaults
// to shard 0.
func (t *inMemoryStoreTx) selectShard(ctx context.Context) int {
	if recordID, ok := ctx.Value(txRecordKeyCtx).(string); ok && recordID != "" {
		return int(hashRecordID(recordID) % numRecordShards)
	}
	return 0
}

// hashRecordID uses FNV-1a for better hash distribution than simple multiply-add.
func hashRecordID(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

type txRecordKey struct{}

var txRecordKeyCtx = txRecordKey{}

// withTxRecord marks the record a transaction serializes on.
func withTxRecord(ctx context.Context, recordID id.RecordID) context.Context {
	return context.WithValue(ctx, txRecordKeyCtx, recordID.String())
}
