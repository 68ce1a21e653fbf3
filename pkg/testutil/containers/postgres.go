//go:build integration

package containers

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema is the registry schema applied once per container. Every statement
// is idempotent so reapplying against a shared container is harmless.
//
// The outbox trigger wakes the relay on insert; polling covers notifications
// lost while the relay is down.
const schema = `
	CREATE TABLE IF NOT EXISTS ledger_records (
		seq               BIGSERIAL,
		record_id         TEXT PRIMARY KEY,
		label             TEXT NOT NULL,
		owner_id          TEXT NOT NULL,
		ciphertext_handle TEXT NOT NULL UNIQUE,
		ciphertext        BYTEA NOT NULL,
		public_coord      BIGINT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL,
		revealed          BOOLEAN NOT NULL,
		revealed_value    BIGINT,
		revealed_at       TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        BYTEA NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL,
		published_at   TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS outbox_unpublished_idx
		ON outbox (created_at) WHERE published_at IS NULL;

	CREATE OR REPLACE FUNCTION outbox_notify() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('outbox_wakeup', NEW.id::text);
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;

	DROP TRIGGER IF EXISTS outbox_notify ON outbox;
	CREATE TRIGGER outbox_notify
		AFTER INSERT ON outbox
		FOR EACH ROW EXECUTE FUNCTION outbox_notify();

	CREATE TABLE IF NOT EXISTS audit_events (
		id         UUID PRIMARY KEY,
		category   TEXT NOT NULL,
		timestamp  TIMESTAMPTZ NOT NULL,
		owner_id   TEXT,
		record_id  TEXT NOT NULL,
		subject    TEXT NOT NULL,
		action     TEXT NOT NULL,
		reason     TEXT NOT NULL,
		decision   TEXT NOT NULL,
		handle     TEXT NOT NULL,
		request_id TEXT NOT NULL,
		actor_id   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS audit_events_timestamp_idx
		ON audit_events (timestamp DESC);
	CREATE INDEX IF NOT EXISTS audit_events_owner_idx
		ON audit_events (owner_id, timestamp DESC);

	CREATE TABLE IF NOT EXISTS audit_compliance (
		id         UUID PRIMARY KEY,
		timestamp  TIMESTAMPTZ NOT NULL,
		owner_id   TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		action     TEXT NOT NULL,
		decision   TEXT NOT NULL,
		handle     TEXT NOT NULL,
		request_id TEXT NOT NULL,
		actor_id   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_security (
		id         UUID PRIMARY KEY,
		timestamp  TIMESTAMPTZ NOT NULL,
		subject    TEXT NOT NULL,
		action     TEXT NOT NULL,
		reason     TEXT NOT NULL,
		ip         TEXT NOT NULL,
		request_id TEXT NOT NULL,
		actor_id   TEXT NOT NULL,
		severity   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_ops (
		id         UUID NOT NULL,
		timestamp  TIMESTAMPTZ NOT NULL,
		subject    TEXT NOT NULL,
		action     TEXT NOT NULL,
		request_id TEXT NOT NULL,
		PRIMARY KEY (id, timestamp)
	);
`

// PostgresContainer wraps a testcontainers Postgres instance with the
// registry schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("geoseal"),
		tcpostgres.WithUsername("geoseal"),
		tcpostgres.WithPassword("geoseal"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// No t.Cleanup: the container is shared across suites through the
	// singleton Manager, and Ryuk reaps it at process exit.

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// AllTables lists every table the schema creates.
var AllTables = []string{
	"ledger_records", "outbox", "audit_events",
	"audit_compliance", "audit_security", "audit_ops",
}

// TruncateTables empties the named tables. Use between tests to ensure
// isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" RESTART IDENTITY")
	return err
}
