// Package relay moves audit events from the transactional outbox to Kafka.
//
// Writers insert events into the outbox table inside their own transactions;
// the relay publishes committed rows and marks them published. A trigger on
// the outbox table sends a NOTIFY on insert so the relay wakes immediately;
// polling remains as a fallback for missed notifications and restarts.
package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	audit "geoseal/pkg/platform/audit"
)

const (
	notifyChannel = "outbox_wakeup"

	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100
)

// Producer is the slice of the Kafka producer the relay needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay publishes outbox rows to Kafka in commit order.
type Relay struct {
	db       *sql.DB
	dsn      string
	producer Producer
	logger   *slog.Logger
	metrics  *Metrics

	pollInterval time.Duration
	batchSize    int
}

// Option configures the Relay.
type Option func(*Relay)

// WithPollInterval sets the fallback polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithBatchSize sets how many outbox rows one cycle publishes.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a relay. The dsn is used for the dedicated LISTEN connection;
// batch reads and updates go through db.
func New(db *sql.DB, dsn string, producer Producer, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		db:           db,
		dsn:          dsn,
		producer:     producer,
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	wake := make(chan struct{}, 1)
	go r.listen(ctx, wake)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// Drain whatever accumulated while the relay was down.
	r.drainAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			r.drainAll(ctx)
		case <-ticker.C:
			r.drainAll(ctx)
		}
	}
}

// listen holds a dedicated LISTEN connection and signals wake on NOTIFY.
// Connection failures degrade the relay to polling; it keeps reconnecting.
func (r *Relay) listen(ctx context.Context, wake chan<- struct{}) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := pgx.Connect(ctx, r.dsn)
		if err != nil {
			r.logger.Warn("outbox listener connect failed, polling only",
				"error", err,
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.pollInterval):
			}
			continue
		}

		if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
			r.logger.Warn("outbox LISTEN failed, polling only", "error", err)
			_ = conn.Close(ctx)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.pollInterval):
			}
			continue
		}

		for {
			if _, err := conn.WaitForNotification(ctx); err != nil {
				_ = conn.Close(context.Background())
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("outbox notification wait failed, reconnecting",
					"error", err,
				)
				break
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}
}

// drainAll publishes batches until the outbox has no unpublished rows or a
// batch fails. Failures leave rows unpublished for the next cycle.
func (r *Relay) drainAll(ctx context.Context) {
	for {
		n, err := r.publishBatch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				r.logger.Error("outbox batch failed", "error", err)
			}
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

// outboxRow is one unpublished entry.
type outboxRow struct {
	id      string
	payload []byte
}

// relayPayload is the slice of the outbox payload the relay routes on.
type relayPayload struct {
	ID       string `json:"ID"`
	Category string `json:"Category"`
}

// publishBatch locks a batch of unpublished rows, publishes them, and marks
// them published in the same transaction. SKIP LOCKED lets multiple relay
// replicas share the table without stepping on each other.
func (r *Relay) publishBatch(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("select outbox batch: %w", err)
	}

	var batch []outboxRow
	for rows.Next() {
		var row outboxRow
		if err := rows.Scan(&row.id, &row.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	rows.Close()

	if len(batch) == 0 {
		return 0, nil
	}

	start := time.Now()
	published := make([]string, 0, len(batch))
	for _, row := range batch {
		var payload relayPayload
		if err := json.Unmarshal(row.payload, &payload); err != nil {
			// A row that cannot be parsed can never be published; mark it so
			// it stops blocking the batch, and scream.
			r.logger.Error("unparseable outbox payload, skipping",
				"outbox_id", row.id,
				"error", err,
			)
			published = append(published, row.id)
			continue
		}

		topic := audit.TopicForCategory(audit.EventCategory(payload.Category))
		if err := r.producer.Produce(ctx, topic, []byte(payload.ID), row.payload); err != nil {
			if r.metrics != nil {
				r.metrics.IncPublishFailures()
			}
			return 0, fmt.Errorf("publish outbox row %s: %w", row.id, err)
		}
		published = append(published, row.id)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE outbox SET published_at = now() WHERE id = ANY($1)
	`, pq.Array(published)); err != nil {
		return 0, fmt.Errorf("mark outbox published: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}

	if r.metrics != nil {
		r.metrics.AddPublished(len(published))
		r.metrics.ObserveBatchDuration(time.Since(start).Seconds())
	}
	return len(batch), nil
}
