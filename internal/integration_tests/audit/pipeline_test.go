//go:build integration

// Package audit drives the audit trail pipeline against real backing
// services: outbox rows written by the store are picked up by the relay,
// published to Redpanda, consumed by the topic router, and materialized back
// into the queryable Postgres tables. Handler behavior is covered by unit
// tests next to the handlers; this package proves the pieces agree on keys,
// topics, and payload shape.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"geoseal/internal/platform/kafka/consumer"
	"geoseal/internal/platform/kafka/producer"
	"geoseal/internal/platform/kafka/relay"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/audit"
	auditconsumer "geoseal/pkg/platform/audit/consumer"
	auditpg "geoseal/pkg/platform/audit/store/postgres"
	"geoseal/pkg/testutil/containers"
)

const (
	flowTimeout = 30 * time.Second
	flowTick    = 250 * time.Millisecond
)

// The sinks mirror the server wiring: each consumed record lands in its
// category table and in the unified audit_events table. Both writes are
// idempotent, so redelivery is harmless.

type complianceSink struct {
	store *auditpg.Store
}

func (s complianceSink) AppendCompliance(ctx context.Context, eventID uuid.UUID, rec auditconsumer.ComplianceRecord) error {
	if err := s.store.AppendCompliance(ctx, eventID, auditpg.ComplianceRecord{
		Timestamp: rec.Timestamp,
		OwnerID:   rec.OwnerID,
		RecordID:  rec.RecordID,
		Action:    rec.Action,
		Decision:  rec.Decision,
		Handle:    rec.Handle,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
	}); err != nil {
		return err
	}
	return s.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.CategoryCompliance,
		Timestamp: rec.Timestamp,
		OwnerID:   rec.OwnerID,
		RecordID:  rec.RecordID,
		Action:    rec.Action,
		Decision:  rec.Decision,
		Handle:    rec.Handle,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
	})
}

type securitySink struct {
	store *auditpg.Store
}

func (s securitySink) AppendSecurity(ctx context.Context, eventID uuid.UUID, rec auditconsumer.SecurityRecord) error {
	if err := s.store.AppendSecurity(ctx, eventID, auditpg.SecurityRecord{
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		Reason:    rec.Reason,
		IP:        rec.IP,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
		Severity:  rec.Severity,
	}); err != nil {
		return err
	}
	return s.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		Reason:    rec.Reason,
		RequestID: rec.RequestID,
		ActorID:   rec.ActorID,
	})
}

type opsSink struct {
	store *auditpg.Store
}

func (s opsSink) AppendOps(ctx context.Context, eventID uuid.UUID, rec auditconsumer.OpsRecord) error {
	if err := s.store.AppendOps(ctx, eventID, auditpg.OpsRecord{
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		RequestID: rec.RequestID,
	}); err != nil {
		return err
	}
	return s.store.AppendWithID(ctx, eventID, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: rec.Timestamp,
		Subject:   rec.Subject,
		Action:    rec.Action,
		RequestID: rec.RequestID,
	})
}

type AuditPipelineSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
	producer *producer.Producer
	consumer *consumer.Consumer
	cancel   context.CancelFunc
}

func TestAuditPipelineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditPipelineSuite))
}

func (s *AuditPipelineSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	redpanda := mgr.GetRedpanda(s.T())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = auditpg.New(s.postgres.DB)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	prod, err := producer.New(ctx, redpanda.Brokers, logger)
	s.Require().NoError(err)
	s.producer = prod
	s.Require().NoError(prod.EnsureTopics(ctx, 1, 1, audit.AllTopics()...))

	router := auditconsumer.NewRouter(logger, nil)
	router.Register(audit.TopicCompliance, auditconsumer.NewComplianceHandler(complianceSink{s.store}, logger))
	router.Register(audit.TopicSecurity, auditconsumer.NewSecurityHandler(securitySink{s.store}, logger))
	router.Register(audit.TopicOps, auditconsumer.NewOpsHandler(opsSink{s.store}, logger))

	// A fresh consumer group per run keeps committed offsets from earlier
	// test binaries out of the picture.
	cons, err := consumer.New(redpanda.Brokers, "pipeline-"+uuid.NewString(), audit.AllTopics(), router, logger)
	s.Require().NoError(err)
	s.consumer = cons

	rel := relay.New(s.postgres.DB, s.postgres.DSN, prod, logger,
		relay.WithPollInterval(200*time.Millisecond),
	)
	go func() { _ = rel.Run(ctx) }()
	go func() { _ = cons.Run(ctx) }()
}

func (s *AuditPipelineSuite) TearDownSuite() {
	s.cancel()
	s.consumer.Close()
	s.producer.Close()
}

func (s *AuditPipelineSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "outbox", "audit_events", "audit_compliance", "audit_security", "audit_ops")
	s.Require().NoError(err)
}

// waitForOwnerEvents polls the unified table until the owner has the expected
// number of materialized events. Tests key their events on unique owners so
// stragglers from earlier tests cannot satisfy the condition.
func (s *AuditPipelineSuite) waitForOwnerEvents(ctx context.Context, owner id.OwnerID, want int) []audit.Event {
	s.T().Helper()
	var got []audit.Event
	s.Require().Eventually(func() bool {
		events, err := s.store.ListByOwner(ctx, owner)
		if err != nil || len(events) < want {
			return false
		}
		got = events
		return true
	}, flowTimeout, flowTick, "event never travelled outbox -> relay -> broker -> consumer -> audit_events")
	return got
}

func (s *AuditPipelineSuite) TestComplianceEventReachesQueryableStore() {
	ctx := context.Background()
	owner := id.OwnerID("owner-pipe-" + uuid.NewString()[:8])
	event := audit.Event{
		Timestamp: time.Now().UTC(),
		OwnerID:   owner,
		RecordID:  "rec-pipe-" + uuid.NewString()[:8],
		Action:    string(audit.EventRecordRegistered),
		Decision:  "registered",
		Handle:    "4f9d31c2",
		RequestID: "req-pipe-1",
	}
	s.Require().NoError(s.store.Append(ctx, event))

	events := s.waitForOwnerEvents(ctx, owner, 1)
	s.Require().Len(events, 1)
	materialized := events[0]
	s.Equal(audit.CategoryCompliance, materialized.Category)
	s.Equal(event.RecordID, materialized.RecordID)
	s.Equal(event.Action, materialized.Action)
	s.Equal("registered", materialized.Decision)
	s.Equal(event.Handle, materialized.Handle)
	s.Equal(event.RequestID, materialized.RequestID)
	s.WithinDuration(event.Timestamp, materialized.Timestamp, time.Second)

	// The compliance table carries its own copy under a separate retention
	// policy.
	var complianceRows int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM audit_compliance WHERE record_id = $1`, event.RecordID).Scan(&complianceRows))
	s.Equal(1, complianceRows)

	// Once the broker acknowledged the record, the relay marks the outbox
	// row so it is never published twice.
	s.Require().Eventually(func() bool {
		var unpublished int
		err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&unpublished)
		return err == nil && unpublished == 0
	}, 10*time.Second, flowTick, "outbox should drain after the broker acknowledges")
}

func (s *AuditPipelineSuite) TestEventsRouteByCategory() {
	ctx := context.Background()
	securityReq := "req-sec-" + uuid.NewString()[:8]
	opsReq := "req-ops-" + uuid.NewString()[:8]

	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "owner-sec-probe",
		Action:    string(audit.EventAuthFailed),
		Reason:    "token expired",
		RequestID: securityReq,
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "encryption-backend",
		Action:    string(audit.EventEncryptionReady),
		RequestID: opsReq,
	}))

	s.Require().Eventually(func() bool {
		var securityRows, opsRows int
		if err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT count(*) FROM audit_security WHERE request_id = $1`, securityReq).Scan(&securityRows); err != nil {
			return false
		}
		if err := s.postgres.DB.QueryRowContext(ctx,
			`SELECT count(*) FROM audit_ops WHERE request_id = $1`, opsReq).Scan(&opsRows); err != nil {
			return false
		}
		return securityRows == 1 && opsRows == 1
	}, flowTimeout, flowTick, "each category should land in its own table")

	// The security payload carries no explicit severity, so the consumer
	// defaults it.
	var severity string
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT severity FROM audit_security WHERE request_id = $1`, securityReq).Scan(&severity))
	s.Equal("info", severity)

	recent, err := s.store.ListRecent(ctx, 10)
	s.Require().NoError(err)
	categories := make(map[audit.EventCategory]bool)
	for _, e := range recent {
		categories[e.Category] = true
	}
	s.True(categories[audit.CategorySecurity], "security event should appear in the unified table")
	s.True(categories[audit.CategoryOperations], "ops event should appear in the unified table")
}

func (s *AuditPipelineSuite) TestUnparseablePayloadIsQuarantined() {
	ctx := context.Background()

	// A row the relay cannot decode is marked published without being
	// produced, so it stops blocking the batch and never surfaces as a
	// materialized event.
	poisonID := uuid.New()
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, 'audit', $2, 'record_registered', $3, now())
	`, poisonID, poisonID.String(), []byte("not json"))
	s.Require().NoError(err)

	owner := id.OwnerID("owner-poison-" + uuid.NewString()[:8])
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		OwnerID:   owner,
		RecordID:  "rec-behind-poison",
		Action:    string(audit.EventRecordRevealed),
		Decision:  "revealed",
		RequestID: "req-poison-1",
	}))

	// The healthy event queued behind the poison row still flows through.
	events := s.waitForOwnerEvents(ctx, owner, 1)
	s.Equal("rec-behind-poison", events[0].RecordID)

	var publishedAt sql.NullTime
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT published_at FROM outbox WHERE id = $1`, poisonID).Scan(&publishedAt))
	s.True(publishedAt.Valid, "poison row must be marked so it cannot wedge the relay")
}

func (s *AuditPipelineSuite) TestRedeliveredMessageCollapsesOntoOneEvent() {
	ctx := context.Background()

	// At-least-once delivery means the consumer can see the same record
	// twice. Producing the duplicate directly simulates a relay crash
	// between the broker acknowledging and the outbox row being marked.
	eventID := uuid.New()
	owner := "owner-redeliver-" + uuid.NewString()[:8]
	payload, err := json.Marshal(map[string]any{
		"ID":        eventID.String(),
		"Category":  string(audit.CategoryCompliance),
		"Timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"OwnerID":   owner,
		"RecordID":  "rec-redelivered",
		"Action":    string(audit.EventRecordRevealed),
		"Decision":  "revealed",
		"RequestID": "req-redeliver-1",
	})
	s.Require().NoError(err)

	for i := 0; i < 2; i++ {
		s.Require().NoError(s.producer.Produce(ctx, audit.TopicCompliance, []byte(eventID.String()), payload))
	}

	// A sentinel event produced after the duplicates pins the assertion:
	// the topic has one partition, so once the sentinel is materialized
	// both deliveries have been handled.
	sentinelID := uuid.New()
	sentinelOwner := "owner-sentinel-" + uuid.NewString()[:8]
	sentinel, err := json.Marshal(map[string]any{
		"ID":        sentinelID.String(),
		"Category":  string(audit.CategoryCompliance),
		"Timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"OwnerID":   sentinelOwner,
		"RecordID":  "rec-sentinel",
		"Action":    string(audit.EventRecordRevealed),
		"Decision":  "revealed",
		"RequestID": "req-redeliver-2",
	})
	s.Require().NoError(err)
	s.Require().NoError(s.producer.Produce(ctx, audit.TopicCompliance, []byte(sentinelID.String()), sentinel))

	s.waitForOwnerEvents(ctx, id.OwnerID(sentinelOwner), 1)

	events, err := s.store.ListByOwner(ctx, id.OwnerID(owner))
	s.Require().NoError(err)
	s.Len(events, 1, "duplicate delivery must collapse onto one materialized event")

	var complianceRows int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM audit_compliance WHERE id = $1`, eventID).Scan(&complianceRows))
	s.Equal(1, complianceRows)
}
