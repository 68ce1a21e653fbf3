package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"geoseal/internal/admin"
	"geoseal/internal/attest"
	"geoseal/internal/fhe"
	httpapi "geoseal/internal/http"
	jwttoken "geoseal/internal/jwt_token"
	"geoseal/internal/ledger/cache"
	ledgerhandler "geoseal/internal/ledger/handler"
	ledgermetrics "geoseal/internal/ledger/metrics"
	ledgerservice "geoseal/internal/ledger/service"
	"geoseal/internal/ledger/store/record"
	"geoseal/internal/oracle"
	"geoseal/internal/platform/config"
	"geoseal/internal/platform/httpserver"
	"geoseal/internal/platform/kafka/consumer"
	"geoseal/internal/platform/kafka/producer"
	"geoseal/internal/platform/kafka/relay"
	"geoseal/internal/platform/logger"
	"geoseal/internal/platform/metrics"
	"geoseal/internal/platform/redis"
	registrarhandler "geoseal/internal/registrar/handler"
	registrarmetrics "geoseal/internal/registrar/metrics"
	registrarservice "geoseal/internal/registrar/service"
	id "geoseal/pkg/domain"
	"geoseal/pkg/platform/audit"
	auditconsumer "geoseal/pkg/platform/audit/consumer"
	"geoseal/pkg/platform/audit/publishers/compliance"
	"geoseal/pkg/platform/audit/publishers/ops"
	"geoseal/pkg/platform/audit/publishers/security"
	auditmem "geoseal/pkg/platform/audit/store/memory"
	auditpg "geoseal/pkg/platform/audit/store/postgres"
	"geoseal/pkg/secrets"
)

const (
	jwtIssuer   = "geoseal"
	jwtAudience = "geoseal-registrants"

	auditTopicPartitions  = 3
	auditTopicReplication = 1

	shutdownTimeout = 10 * time.Second
)

// listingCache joins the read side the ledger handler serves from and the
// invalidation side the registrar drops after writes. Both cache backends
// implement it.
type listingCache interface {
	ledgerhandler.ListingCache
	registrarservice.ListingCache
}

// main assembles the registry and keeps the process lifecycle small. Domain
// logic lives in the internal services; everything here is wiring.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("registry exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kafkaEnabled := len(cfg.Kafka.Brokers) > 0

	// Record storage. Without DATABASE_URL everything runs in process, which
	// is enough for development and demos.
	var (
		db      *sql.DB
		records ledgerservice.RecordStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		records = record.NewPostgres(db)
	} else {
		records = record.NewInMemory()
		log.Warn("DATABASE_URL not set, records live in process memory")
	}

	// Audit trail. The outbox pattern needs Postgres for the outbox and Kafka
	// to drain it; with either missing, events stay in process and the
	// operator surface reads from memory.
	var (
		auditStore audit.Store
		pgAudit    *auditpg.Store
	)
	if db != nil && kafkaEnabled {
		pgAudit = auditpg.New(db)
		auditStore = pgAudit
	} else {
		if kafkaEnabled {
			log.Warn("KAFKA_BROKERS set without DATABASE_URL, audit relay disabled")
		}
		auditStore = auditmem.NewInMemoryStore()
	}

	compliancePub := compliance.New(auditStore, compliance.WithLogger(log))
	securityPub := security.New(auditStore, security.WithLogger(log))
	defer securityPub.Close()
	opsTracker := ops.New(auditStore, ops.WithLogger(log))
	defer opsTracker.Close()

	// Listing cache. Redis keeps replicas serving the same snapshot; the
	// in-process fallback is fine for a single node.
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var listing listingCache
	if redisClient != nil {
		defer redisClient.Close()
		listing = cache.NewRedis(redisClient.Client, config.ListingCacheTTL)
	} else {
		listing = cache.NewMemory(config.ListingCacheTTL)
	}

	// Encryption backend and decryption authority, in-process for now. The
	// authority shares the backend's cipher and attestation key, so reveal
	// proofs verify against the same keyring as input proofs.
	client, err := fhe.NewMockClient()
	if err != nil {
		return fmt.Errorf("create encryption backend: %w", err)
	}
	client.InitDelay = cfg.FHE.InitDelay
	client.Latency = cfg.FHE.Latency

	registryCtx := id.ContextID(cfg.RegistryContext)
	backend := fhe.NewAdapter(client, registryCtx, fhe.WithLogger(log))
	keyring := attest.NewKeyring(client.PublicKey())

	ledgerOpts := []ledgerservice.Option{
		ledgerservice.WithLogger(log),
		ledgerservice.WithMetrics(ledgermetrics.New()),
		ledgerservice.WithCompliancePublisher(compliancePub),
		ledgerservice.WithSecurityPublisher(securityPub),
		ledgerservice.WithOpsTracker(opsTracker),
	}
	if db != nil {
		ledgerOpts = append(ledgerOpts,
			ledgerservice.WithStoreTx(newLedgerPostgresTx(db)),
			ledgerservice.WithAvailabilityProbe(db.PingContext),
		)
	}
	if redisClient != nil {
		ledgerOpts = append(ledgerOpts, ledgerservice.WithAvailabilityProbe(redisClient.Health))
	}
	ledgerSvc := ledgerservice.NewLedgerService(records, keyring, registryCtx, ledgerOpts...)

	authority := oracle.NewMockAuthority(client, client.Signer(), func(ctx context.Context, handle id.Handle) ([]byte, error) {
		rec, err := ledgerSvc.GetByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		return rec.Ciphertext, nil
	})
	authority.Latency = cfg.Oracle.Latency

	revealer := oracle.NewVerifier(authority, keyring, registryCtx, oracle.WithLogger(log))

	registrarSvc := registrarservice.New(ledgerSvc, backend, revealer,
		registrarservice.WithLogger(log),
		registrarservice.WithListingCache(listing),
		registrarservice.WithOpsTracker(opsTracker),
		registrarservice.WithMetrics(registrarmetrics.New()),
		registrarservice.WithRevealTimeout(cfg.Oracle.Timeout),
	)

	// HTTP surface.
	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, jwtIssuer, jwtAudience)

	var operator httpapi.Registrant
	if cfg.AdminToken != "" {
		tokenHash, err := secrets.Hash(cfg.AdminToken)
		if err != nil {
			return fmt.Errorf("hash admin token: %w", err)
		}
		operator = admin.New(auditStore, tokenHash, log)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:          log,
		Metrics:         metrics.New(),
		JWTValidator:    jwttoken.NewJWTServiceAdapter(jwtService),
		SecurityAuditor: securityPub,
		Reads:           ledgerhandler.New(ledgerSvc, listing, log),
		Writes:          registrarhandler.New(registrarSvc, log),
		Operator:        operator,
		Health:          httpapi.NewHealthHandler(backend, ledgerSvc),
	})
	srv := httpserver.New(cfg.Addr, router)

	// Outbox relay and the consumer that materializes relayed events into the
	// queryable audit tables.
	var (
		outboxRelay   *relay.Relay
		auditConsumer *consumer.Consumer
	)
	if pgAudit != nil {
		kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers, log)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer kafkaProducer.Close()
		if err := kafkaProducer.EnsureTopics(ctx, auditTopicPartitions, auditTopicReplication, audit.AllTopics()...); err != nil {
			return fmt.Errorf("ensure audit topics: %w", err)
		}
		outboxRelay = relay.New(db, cfg.DatabaseURL, kafkaProducer, log)

		topics := auditconsumer.NewRouter(log, nil)
		topics.Register(audit.TopicCompliance, auditconsumer.NewComplianceHandler(complianceSink{store: pgAudit}, log))
		topics.Register(audit.TopicSecurity, auditconsumer.NewSecurityHandler(securitySink{store: pgAudit}, log))
		topics.Register(audit.TopicOps, auditconsumer.NewOpsHandler(opsSink{store: pgAudit}, log))

		auditConsumer, err = consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, audit.AllTopics(), topics, log)
		if err != nil {
			return fmt.Errorf("create audit consumer: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting registry",
			"addr", cfg.Addr,
			"context", cfg.RegistryContext,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Warm the encryption backend so the first registration skips the init
	// wait. After a failed warmup the readiness probe reports failed and
	// registrations are refused until an operator restarts the process.
	g.Go(func() error {
		action := audit.EventEncryptionReady
		if err := backend.Initialize(gctx); err != nil {
			log.Warn("encryption backend warmup failed", "error", err)
			action = audit.EventEncryptionInitFailed
		}
		opsTracker.Track(gctx, audit.OpsEvent{
			Timestamp: time.Now(),
			Subject:   "encryption_backend",
			Action:    string(action),
		})
		return nil
	})

	if outboxRelay != nil {
		g.Go(func() error {
			if err := outboxRelay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	if auditConsumer != nil {
		g.Go(func() error {
			defer auditConsumer.Close()
			if err := auditConsumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit consumer: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
