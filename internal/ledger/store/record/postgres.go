package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"geoseal/internal/ledger/models"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/sentinel"
	txcontext "geoseal/pkg/platform/tx"
)

// Postgres persists ledger records in PostgreSQL. The seq column orders
// listings by insertion; FOR UPDATE inside Execute gives the same
// validate-then-mutate atomicity the memory store gets from its mutex.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `record_id, label, owner_id, ciphertext_handle, ciphertext,
		   public_coord, created_at, revealed, revealed_value, revealed_at`

// Insert stores a new record. First writer wins: a second insert under the
// same record id affects zero rows and maps to ErrConflict, leaving the
// stored record untouched.
func (s *PostgresStore) Insert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO ledger_records (
			record_id, label, owner_id, ciphertext_handle, ciphertext,
			public_coord, created_at, revealed
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (record_id) DO NOTHING
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID.String(),
		rec.Label,
		rec.Owner.String(),
		rec.CiphertextHandle.String(),
		rec.Ciphertext,
		rec.PublicCoord,
		rec.CreatedAt,
		rec.Revealed,
	)
	if err != nil {
		return fmt.Errorf("insert ledger record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ledger record: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record %q: %w", rec.ID, sentinel.ErrConflict)
	}
	return nil
}

// FindByID returns the record, or ErrNotFound.
func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledger_records WHERE record_id = $1`
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, recordID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %q: %w", recordID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find record by id: %w", err)
	}
	return rec, nil
}

// FindByHandle resolves a ciphertext handle back to its record, or ErrNotFound.
func (s *PostgresStore) FindByHandle(ctx context.Context, handle id.Handle) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledger_records WHERE ciphertext_handle = $1`
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, handle.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("handle %q: %w", handle, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find record by handle: %w", err)
	}
	return rec, nil
}

// Execute atomically validates and mutates a record. The row is locked with
// FOR UPDATE for the duration, so concurrent writers serialize and validate
// always sees committed state. Joins an ambient transaction from context when
// one is present; otherwise runs in its own.
func (s *PostgresStore) Execute(ctx context.Context, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return executeLocked(ctx, tx, recordID, validate, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin record update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := executeLocked(ctx, tx, recordID, validate, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit record update: %w", err)
	}
	return rec, nil
}

func executeLocked(ctx context.Context, tx *sql.Tx, recordID id.RecordID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledger_records WHERE record_id = $1 FOR UPDATE`
	rec, err := scanRecord(tx.QueryRowContext(ctx, query, recordID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %q: %w", recordID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("lock record for update: %w", err)
	}

	if err := validate(rec); err != nil {
		return nil, err
	}
	mutate(rec)

	update := `
		UPDATE ledger_records
		SET revealed = $2, revealed_value = $3, revealed_at = $4
		WHERE record_id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		recordID.String(),
		rec.Revealed,
		nullInt64(rec.RevealedValue),
		nullTime(rec.RevealedAt),
	); err != nil {
		return nil, fmt.Errorf("update ledger record: %w", err)
	}
	return rec, nil
}

// ListIDs returns all record ids in insertion order.
func (s *PostgresStore) ListIDs(ctx context.Context) ([]id.RecordID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record_id FROM ledger_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	defer rows.Close()

	var ids []id.RecordID
	for rows.Next() {
		var recordID string
		if err := rows.Scan(&recordID); err != nil {
			return nil, fmt.Errorf("scan record id: %w", err)
		}
		ids = append(ids, id.RecordID(recordID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record ids: %w", err)
	}
	return ids, nil
}

// List returns all records in insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledger_records ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		rec           models.Record
		recordID      string
		owner         string
		handle        string
		revealedValue sql.NullInt64
		revealedAt    sql.NullTime
	)
	err := row.Scan(
		&recordID,
		&rec.Label,
		&owner,
		&handle,
		&rec.Ciphertext,
		&rec.PublicCoord,
		&rec.CreatedAt,
		&rec.Revealed,
		&revealedValue,
		&revealedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ID = id.RecordID(recordID)
	rec.Owner = id.OwnerID(owner)
	rec.CiphertextHandle = id.Handle(handle)
	if revealedValue.Valid {
		rec.RevealedValue = &revealedValue.Int64
	}
	if revealedAt.Valid {
		rec.RevealedAt = &revealedAt.Time
	}
	return &rec, nil
}

func nullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}
