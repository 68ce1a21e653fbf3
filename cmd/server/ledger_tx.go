package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "geoseal/pkg/domain-errors"
	txcontext "geoseal/pkg/platform/tx"
)

const defaultLedgerTxTimeout = 5 * time.Second

// ledgerPostgresTx runs ledger mutations inside one database transaction.
// The transaction rides the context, so the record store and the audit
// outbox write through the same tx and commit together.
type ledgerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLedgerPostgresTx(db *sql.DB) *ledgerPostgresTx {
	return &ledgerPostgresTx{db: db}
}

func (t *ledgerPostgresTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	return tx.Commit()
}
