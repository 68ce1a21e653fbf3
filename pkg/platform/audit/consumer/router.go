package consumer

import (
	"context"
	"log/slog"

	"geoseal/internal/platform/kafka/consumer"
)

// TopicHandler handles messages from one topic.
type TopicHandler interface {
	Handle(ctx context.Context, msg *consumer.Message) error
}

// Router fans messages out to per-topic handlers, for consumers subscribed
// to more than one audit topic.
type Router struct {
	handlers map[string]TopicHandler
	fallback TopicHandler
	logger   *slog.Logger
}

// NewRouter creates a router. The fallback, if non-nil, receives messages
// from topics with no registered handler.
func NewRouter(logger *slog.Logger, fallback TopicHandler) *Router {
	return &Router{
		handlers: make(map[string]TopicHandler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register binds a handler to a topic.
func (r *Router) Register(topic string, handler TopicHandler) {
	r.handlers[topic] = handler
}

// Handle dispatches the message by topic. A message nothing claims is
// logged and committed, never redelivered.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	if handler, ok := r.handlers[msg.Topic]; ok {
		return handler.Handle(ctx, msg)
	}
	if r.fallback != nil {
		return r.fallback.Handle(ctx, msg)
	}
	r.logger.Warn("no handler for topic, skipping message",
		"topic", msg.Topic,
		"key", string(msg.Key),
	)
	return nil
}
