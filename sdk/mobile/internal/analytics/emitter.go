package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/internal/dedup"
	"github.com/adgeist/adgeistkit/internal/observability"
	"github.com/adgeist/adgeistkit/sdk/mobile/internal/storage"
)

// DefaultBuffer is the number of events the emitter holds in memory while the
// persistence worker catches up.
const DefaultBuffer = 256

// Drop reasons reported on the analytics.events.dropped counter.
const (
	DropDuplicate = "duplicate"
	DropBuffer    = "buffer_full"
	DropClosed    = "closed"
	DropPersist   = "persist_failed"
	DropEncode    = "encode_failed"
)

// ErrClosed is passed to the error hook for events emitted after Close.
var ErrClosed = errors.New("analytics: emitter closed")

// Sink persists an event for delivery. batch.Batcher implements it.
type Sink interface {
	Add(e storage.PendingEvent) error
}

// Emitter accepts events without ever blocking the caller. A single worker
// moves them into the Sink in emission order.
type Emitter struct {
	sink    Sink
	filter  *dedup.Filter
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
	onError func(error)

	mu     sync.RWMutex
	closed bool
	ch     chan Envelope
	done   chan struct{}
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithDedup drops events whose idempotency key was already emitted.
func WithDedup(f *dedup.Filter) EmitterOption { return func(e *Emitter) { e.filter = f } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) EmitterOption { return func(e *Emitter) { e.now = now } }

// WithErrorHook receives persistence failures.
func WithErrorHook(fn func(error)) EmitterOption { return func(e *Emitter) { e.onError = fn } }

// WithBuffer sets the in-memory buffer size.
func WithBuffer(n int) EmitterOption {
	return func(e *Emitter) {
		if n > 0 {
			e.ch = make(chan Envelope, n)
		}
	}
}

// NewEmitter starts an Emitter writing to sink. metrics may be nil.
func NewEmitter(sink Sink, metrics *observability.Metrics, logger *slog.Logger, opts ...EmitterOption) *Emitter {
	if metrics == nil {
		metrics = observability.Discard()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Emitter{
		sink:    sink,
		metrics: metrics,
		logger:  logger.With("component", "analytics"),
		now:     time.Now,
		ch:      make(chan Envelope, DefaultBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.run()
	return e
}

// Emit queues ev for delivery and returns immediately. Duplicates, events
// arriving while the buffer is full, and events after Close are dropped and
// counted.
func (e *Emitter) Emit(a Ambient, ev Event) {
	env := NewEnvelope(a, ev, e.now())
	kind := string(ev.Type())

	if e.filter != nil && e.filter.Seen(env.IdempotencyKey, kind) {
		e.drop(kind, DropDuplicate)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.drop(kind, DropClosed)
		e.report(ErrClosed)
		return
	}
	select {
	case e.ch <- env:
		e.metrics.EventsEmitted.Add(context.Background(), 1,
			otelmetric.WithAttributes(attribute.String("type", kind)))
	default:
		e.drop(kind, DropBuffer)
		e.logger.Warn("analytics buffer full, event dropped", "type", kind, "ad_space_id", a.AdSpaceID)
	}
}

// Close stops accepting events, persists everything already buffered, and
// returns once the worker exits. Safe to call more than once.
func (e *Emitter) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
	e.mu.Unlock()
	<-e.done
}

func (e *Emitter) run() {
	defer close(e.done)
	for env := range e.ch {
		kind := string(env.Event.Type())
		payload, err := json.Marshal(env)
		if err != nil {
			e.drop(kind, DropEncode)
			e.report(err)
			continue
		}
		err = e.sink.Add(storage.PendingEvent{
			AdSpaceID:      env.AdSpaceID,
			EventType:      kind,
			Payload:        string(payload),
			IdempotencyKey: env.IdempotencyKey,
			CreatedAt:      env.Timestamp.UnixMilli(),
		})
		if err != nil {
			e.drop(kind, DropPersist)
			e.logger.Error("persist analytics event", "type", kind, "error", err)
			e.report(err)
			continue
		}
		e.logger.Debug("analytics event queued", "type", kind, "ad_space_id", env.AdSpaceID,
			"idempotency_key", env.IdempotencyKey)
	}
}

func (e *Emitter) drop(kind, reason string) {
	e.metrics.EventsDropped.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("type", kind),
		attribute.String("reason", reason),
	))
}

func (e *Emitter) report(err error) {
	if e.onError != nil {
		e.onError(err)
	}
}
