// Package batch moves persisted analytics events to a delivery sink in
// batches. Events are written to the storage queue first, then flushed when
// either the batch size is reached or the flush interval elapses.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
)

// Defaults and lower bounds for Config.
const (
	DefaultBatchSize     = 10
	DefaultFlushInterval = 5 * time.Second
	DefaultMaxRetries    = 10

	minFlushInterval = 100 * time.Millisecond
)

// DropExhausted is the drop reason for events that ran out of retries.
const DropExhausted = "retries_exhausted"

// EventQueue abstracts storage.Queue for tests.
type EventQueue interface {
	Enqueue(e storage.PendingEvent) error
	DequeueBatch(n int) ([]storage.PendingEvent, error)
	Delete(ids []int64) error
	MarkRetry(id int64) error
	DropExhausted(maxRetries int) (int, error)
	Count() (int, error)
}

// Sender delivers events in order. It reports how many leading events were
// accepted; on error the remaining events stay queued for retry.
type Sender interface {
	Send(ctx context.Context, events []storage.PendingEvent) (accepted int, err error)
}

// Config controls batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxRetries    int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FlushInterval < minFlushInterval {
		c.FlushInterval = minFlushInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Batcher batches events by count and time, whichever trigger fires first.
type Batcher struct {
	queue   EventQueue
	sender  Sender
	cfg     Config
	metrics *observability.Metrics
	logger  *slog.Logger

	mu           sync.Mutex
	pendingCount int
	lastFlush    time.Time

	flushCh  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	started  bool

	onError func(err error)
}

// NewBatcher creates a Batcher. metrics and logger may be nil.
func NewBatcher(queue EventQueue, sender Sender, cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Batcher {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batcher{
		queue:     queue,
		sender:    sender,
		cfg:       cfg.withDefaults(),
		metrics:   metrics,
		logger:    logger.With("component", "batch"),
		lastFlush: time.Now(),
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// SetOnError sets a callback invoked when a background flush fails.
func (b *Batcher) SetOnError(fn func(err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Add persists an event and requests a flush once a full batch is pending.
// It never waits on the network.
func (b *Batcher) Add(e storage.PendingEvent) error {
	if err := b.queue.Enqueue(e); err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	b.mu.Lock()
	b.pendingCount++
	shouldFlush := b.pendingCount >= b.cfg.BatchSize
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Pending returns the number of events waiting in the queue.
func (b *Batcher) Pending() (int, error) {
	return b.queue.Count()
}

// Flush sends one batch. Accepted events are deleted; the rest have their
// retry counter bumped and are dropped once they reach MaxRetries.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked(ctx)
}

// flushLocked performs the flush. Caller must hold b.mu.
func (b *Batcher) flushLocked(ctx context.Context) error {
	start := time.Now()
	defer func() { b.lastFlush = time.Now() }()

	events, err := b.queue.DequeueBatch(b.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("dequeue batch: %w", err)
	}
	if len(events) == 0 {
		b.pendingCount = 0
		return nil
	}

	b.metrics.BatchSize.Record(ctx, int64(len(events)))
	accepted, sendErr := b.sender.Send(ctx, events)
	accepted = max(0, min(accepted, len(events)))
	b.metrics.FlushLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if accepted > 0 {
		ids := make([]int64, accepted)
		for i, e := range events[:accepted] {
			ids[i] = e.ID
		}
		if err := b.queue.Delete(ids); err != nil {
			return fmt.Errorf("delete sent events: %w", err)
		}
		for _, e := range events[:accepted] {
			b.metrics.EventsDelivered.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("type", e.EventType)))
		}
	}

	if sendErr == nil {
		b.pendingCount = max(0, b.pendingCount-accepted)
		b.logger.Debug("batch delivered", "count", accepted)
		return nil
	}

	for _, e := range events[accepted:] {
		if err := b.queue.MarkRetry(e.ID); err != nil && b.onError != nil {
			b.onError(fmt.Errorf("mark retry for event %d: %w", e.ID, err))
		}
	}
	dropped, err := b.queue.DropExhausted(b.cfg.MaxRetries)
	if err != nil {
		b.logger.Warn("drop exhausted events", "error", err)
	}
	if dropped > 0 {
		b.metrics.EventsDropped.Add(ctx, int64(dropped), otelmetric.WithAttributes(
			attribute.String("reason", DropExhausted),
		))
		b.logger.Warn("analytics events dropped after max retries", "count", dropped, "max_retries", b.cfg.MaxRetries)
	}
	return fmt.Errorf("send batch: %w", sendErr)
}

// Stop signals the flush loop to exit after a final flush and waits for it.
// Safe to call more than once, and before StartFlushLoop.
func (b *Batcher) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		<-b.doneCh
	}
}
