// Package observability wires OpenTelemetry metrics with a Prometheus
// exporter for hosts of the ad SDK, and defines the SDK's instruments.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Bucket boundaries for the SDK histograms. The exporter defaults are tuned
// for server latencies in seconds and put every ad render in one bucket.
var (
	latencyBuckets = []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	batchBuckets   = []float64{1, 2, 5, 10, 25, 50, 100}
)

// Module owns a MeterProvider exported through Prometheus.
type Module struct {
	provider *sdkmetric.MeterProvider
	meter    otelmetric.Meter
}

// New creates a Module and installs its MeterProvider globally, so a Kit
// created afterwards reports into it.
func New(serviceName string) (*Module, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdkmetric.WithView(
			histogramView("http.client.duration", latencyBuckets),
			histogramView("ad.render.latency", latencyBuckets),
			histogramView("analytics.flush.latency", latencyBuckets),
			histogramView("analytics.batch.size", batchBuckets),
		),
	)
	otel.SetMeterProvider(provider)

	return &Module{
		provider: provider,
		meter:    provider.Meter(serviceName),
	}, nil
}

func histogramView(name string, bounds []float64) sdkmetric.View {
	return sdkmetric.NewView(
		sdkmetric.Instrument{Name: name},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: bounds}},
	)
}

// Shutdown flushes and stops the MeterProvider.
func (m *Module) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// MetricsHandler serves the Prometheus exposition format. Mount at "/metrics".
func (m *Module) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Meter returns a meter scoped to the service, for host instruments.
func (m *Module) Meter() otelmetric.Meter {
	return m.meter
}
