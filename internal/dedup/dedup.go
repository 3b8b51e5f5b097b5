// Package dedup drops analytics events whose idempotency key was already seen
// within a sliding time window. It is a probabilistic guard: a false positive
// drops an event, a false negative never happens for keys still in the window.
package dedup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/adgeist/adgeistkit/internal/observability"
)

// Config sizes the filter.
type Config struct {
	Window   time.Duration `env:"DEDUP_WINDOW"   envDefault:"30m"`
	Capacity uint          `env:"DEDUP_CAPACITY" envDefault:"10000"`
	FPRate   float64       `env:"DEDUP_FP_RATE"  envDefault:"0.0001"`
}

// DefaultConfig is sized for a single app session: a 30 minute window and
// ten thousand events at a 0.01% false positive rate.
func DefaultConfig() Config {
	return Config{Window: 30 * time.Minute, Capacity: 10_000, FPRate: 0.0001}
}

// Filter is safe for concurrent use.
type Filter struct {
	w       *window
	metrics *observability.Metrics
	logger  *slog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New creates a Filter. Zero config fields take DefaultConfig values.
// metrics may be nil.
func New(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Filter {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.FPRate <= 0 || cfg.FPRate >= 1 {
		cfg.FPRate = def.FPRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		w:       newWindow(cfg.Window, cfg.Capacity, cfg.FPRate),
		metrics: metrics,
		logger:  logger.With("component", "dedup"),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Seen reports whether key was already recorded and records it otherwise.
// Empty keys are never duplicates. kind tags the drop metric.
func (f *Filter) Seen(key, kind string) bool {
	if key == "" {
		return false
	}
	if !f.w.testAndAdd(key) {
		return false
	}
	if f.metrics != nil {
		f.metrics.DedupDropped.Add(context.Background(), 1,
			otelmetric.WithAttributes(attribute.String("type", kind)))
	}
	f.logger.Debug("duplicate event dropped", "idempotency_key", key, "type", kind)
	return true
}

// Start rotates the filter every half window until ctx is done or Stop is
// called. Calling Start more than once has no effect.
func (f *Filter) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		interval := f.w.length / 2
		go func() {
			defer close(f.doneCh)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					f.w.rotate()
					f.logger.Debug("bloom filter rotated")
				case <-ctx.Done():
					return
				case <-f.stopCh:
					return
				}
			}
		}()
	})
}

// Stop ends rotation and waits for the goroutine. Safe to call repeatedly
// and without Start.
func (f *Filter) Stop() {
	f.stopOnce.Do(func() {
		close(f.stopCh)
		started := true
		f.startOnce.Do(func() { started = false })
		if started {
			<-f.doneCh
		}
	})
}
