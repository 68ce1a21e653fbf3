// Package tx carries a *sql.Tx through context so that stores invoked inside
// a transaction (ledger writes and their outbox entries) share it instead of
// opening their own connections.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx returns a context carrying the transaction. A nil tx leaves the
// context untouched.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From reports the transaction carried by ctx, if any. Stores that support
// transactional writes check it before falling back to their own pool.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}
