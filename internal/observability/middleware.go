package observability

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// HTTPClientMetrics wraps next so every outgoing request records duration,
// a total count, and an error count (transport failures and status >= 400),
// tagged with method, path and status. A nil next wraps http.DefaultTransport.
//
// Usage:
//
//	client := &http.Client{Transport: observability.HTTPClientMetrics(metrics)(nil)}
func HTTPClientMetrics(metrics *Metrics) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if next == nil {
			next = http.DefaultTransport
		}
		return roundTripperFunc(func(r *http.Request) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(r)

			status := "error"
			if err == nil {
				status = strconv.Itoa(resp.StatusCode)
			}
			attrs := otelmetric.WithAttributes(
				attribute.String("method", r.Method),
				attribute.String("path", r.URL.Path),
				attribute.String("status", status),
			)

			ctx := r.Context()
			metrics.HTTPClientDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
			metrics.HTTPClientTotal.Add(ctx, 1, attrs)
			if err != nil || resp.StatusCode >= 400 {
				metrics.HTTPClientErrors.Add(ctx, 1, attrs)
			}
			return resp, err
		})
	}
}
