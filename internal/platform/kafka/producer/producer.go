// Package producer wraps the franz-go client for publishing to Kafka.
package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer publishes records synchronously. Callers that need fire-and-forget
// semantics layer their own buffering on top (the outbox relay does not: it
// must know whether a record landed before marking it published).
type Producer struct {
	client *kgo.Client
	logger *slog.Logger
}

// Option configures the Producer.
type Option func(*[]kgo.Opt)

// WithClientID sets the Kafka client ID reported to brokers.
func WithClientID(clientID string) Option {
	return func(opts *[]kgo.Opt) {
		*opts = append(*opts, kgo.ClientID(clientID))
	}
}

// New connects to the brokers and verifies the connection with a ping.
func New(ctx context.Context, brokers []string, logger *slog.Logger, opts ...Option) (*Producer, error) {
	kopts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	for _, opt := range opts {
		opt(&kopts)
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping kafka brokers: %w", err)
	}

	return &Producer{client: client, logger: logger}, nil
}

// Produce publishes one record and blocks until the broker acknowledges it.
func (p *Producer) Produce(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

// EnsureTopics creates the given topics if they do not exist. Already-existing
// topics are not an error; anything else is.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	adm := kadm.NewClient(p.client)

	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, res := range resp.Sorted() {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
		if res.Err == nil && p.logger != nil {
			p.logger.Info("created kafka topic", "topic", res.Topic)
		}
	}
	return nil
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close() {
	p.client.Close()
}
