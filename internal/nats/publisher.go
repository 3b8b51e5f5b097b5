package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/internal/observability"
)

// Message is one analytics envelope ready for publishing.
type Message struct {
	AdSpaceID string
	Type      string
	// ID deduplicates redeliveries on the server within the stream's duplicate window.
	ID   string
	Data []byte
}

// publisher is the part of jetstream.JetStream the Publisher uses.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher publishes analytics envelopes to JetStream.
type Publisher struct {
	js      publisher
	prefix  string
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewPublisher creates a Publisher rooted at subjectPrefix. metrics may be nil.
func NewPublisher(js publisher, subjectPrefix string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		js:      js,
		prefix:  strings.TrimSuffix(subjectPrefix, "."),
		metrics: metrics,
		logger:  logger.With("component", "publisher"),
	}
}

// Publish sends one message and waits for the stream's ack.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	subject := p.Subject(msg)

	var opts []jetstream.PublishOpt
	if msg.ID != "" {
		opts = append(opts, jetstream.WithMsgID(msg.ID))
	}
	ack, err := p.js.Publish(ctx, subject, msg.Data, opts...)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.metrics.NATSPublished.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", msg.Type)))
	p.logger.Debug("event published",
		"subject", subject,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate,
	)
	return nil
}

// PublishBatch publishes messages in order and stops at the first failure.
// It returns how many leading messages were acked.
func (p *Publisher) PublishBatch(ctx context.Context, msgs []Message) (int, error) {
	for i, msg := range msgs {
		if err := p.Publish(ctx, msg); err != nil {
			p.logger.Error("failed to publish event in batch", "type", msg.Type, "error", err)
			return i, fmt.Errorf("%w: %d of %d published: %w", ErrPartialPublish, i, len(msgs), err)
		}
	}
	return len(msgs), nil
}

// Subject derives {prefix}.{ad_space}.{type} for msg.
func (p *Publisher) Subject(msg Message) string {
	adSpace := sanitizeToken(msg.AdSpaceID)
	if adSpace == "" {
		adSpace = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", p.prefix, adSpace, strings.ToLower(sanitizeToken(msg.Type)))
}

// sanitizeToken makes s a single subject token: separators and wildcards
// become underscores.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
