package observability

import (
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the SDK's metric instruments. They are created once per Kit
// and shared by the fetch, lifecycle, and delivery components.
type Metrics struct {
	// Outgoing HTTP
	HTTPClientDuration otelmetric.Float64Histogram
	HTTPClientTotal    otelmetric.Int64Counter
	HTTPClientErrors   otelmetric.Int64Counter

	// Ad loading
	AdLoads       otelmetric.Int64Counter
	AdLoadErrors  otelmetric.Int64Counter
	RenderLatency otelmetric.Float64Histogram

	// Analytics pipeline
	EventsEmitted   otelmetric.Int64Counter
	EventsDropped   otelmetric.Int64Counter
	EventsDelivered otelmetric.Int64Counter
	BatchSize       otelmetric.Int64Histogram
	FlushLatency    otelmetric.Float64Histogram
	DedupDropped    otelmetric.Int64Counter

	// NATS sink
	NATSPublished otelmetric.Int64Counter
}

// NewMetrics creates all instruments from meter.
func NewMetrics(meter otelmetric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	m.HTTPClientDuration, err = meter.Float64Histogram(
		"http.client.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Outgoing HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPClientTotal, err = meter.Int64Counter(
		"http.client.total",
		otelmetric.WithDescription("Total outgoing HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPClientErrors, err = meter.Int64Counter(
		"http.client.errors",
		otelmetric.WithDescription("Outgoing HTTP requests that failed or returned >= 400"),
	)
	if err != nil {
		return nil, err
	}

	m.AdLoads, err = meter.Int64Counter(
		"ad.loads",
		otelmetric.WithDescription("Ad load attempts by buy type and outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.AdLoadErrors, err = meter.Int64Counter(
		"ad.load.errors",
		otelmetric.WithDescription("Ad loads that ended in a failure callback"),
	)
	if err != nil {
		return nil, err
	}

	m.RenderLatency, err = meter.Float64Histogram(
		"ad.render.latency",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Time from load start to render success in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsEmitted, err = meter.Int64Counter(
		"analytics.events.emitted",
		otelmetric.WithDescription("Analytics events accepted by the emitter"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsDropped, err = meter.Int64Counter(
		"analytics.events.dropped",
		otelmetric.WithDescription("Analytics events dropped before delivery, by reason"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsDelivered, err = meter.Int64Counter(
		"analytics.events.delivered",
		otelmetric.WithDescription("Analytics events acknowledged by the sink"),
	)
	if err != nil {
		return nil, err
	}

	m.BatchSize, err = meter.Int64Histogram(
		"analytics.batch.size",
		otelmetric.WithDescription("Analytics batch sizes"),
	)
	if err != nil {
		return nil, err
	}

	m.FlushLatency, err = meter.Float64Histogram(
		"analytics.flush.latency",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Batch flush latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.DedupDropped, err = meter.Int64Counter(
		"dedup.dropped",
		otelmetric.WithDescription("Duplicate analytics events dropped"),
	)
	if err != nil {
		return nil, err
	}

	m.NATSPublished, err = meter.Int64Counter(
		"nats.messages.published",
		otelmetric.WithDescription("Analytics envelopes published to NATS"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// Discard returns instruments backed by a no-op meter.
func Discard() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("discard"))
	return m
}
