// Package consumer wraps the franz-go consumer group client.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one consumed Kafka record, decoupled from the client library so
// handlers stay testable.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Handler processes consumed messages. A nil error commits the message; an
// error leaves it uncommitted for redelivery.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer runs a consumer group over a set of topics, dispatching each record
// to the handler and committing after successful handling (at-least-once).
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New creates a consumer group member subscribed to the given topics.
func New(brokers []string, group string, topics []string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. Handler errors are logged and the
// record is left uncommitted; poisoned messages must be handled by the
// handler itself (return nil to skip).
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("kafka fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		fetches.EachRecord(func(record *kgo.Record) {
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
			}
			if err := c.handler.Handle(ctx, msg); err != nil {
				c.logger.Error("message handling failed, leaving uncommitted",
					"topic", record.Topic,
					"key", string(record.Key),
					"error", err,
				)
				return
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				c.logger.Error("commit failed",
					"topic", record.Topic,
					"error", err,
				)
			}
		})
	}
}

// Close leaves the consumer group and closes the client.
func (c *Consumer) Close() {
	c.client.Close()
}
