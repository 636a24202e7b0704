package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetrics records OpenTelemetry server request instruments.
type HTTPMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
	size     metric.Int64Histogram
}

// NewHTTPMetrics creates the instruments on meter. A nil meter uses the global provider.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}

	requests, err := meter.Int64Counter("http.server.request.total",
		metric.WithDescription("HTTP server requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("HTTP server requests in flight"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create in-flight counter: %w", err)
	}

	size, err := meter.Int64Histogram("http.server.response.body.size",
		metric.WithDescription("Size of HTTP response bodies"),
		metric.WithUnit("By"))
	if err != nil {
		return nil, fmt.Errorf("create size histogram: %w", err)
	}

	return &HTTPMetrics{duration: duration, requests: requests, inFlight: inFlight, size: size}, nil
}

// Middleware records the instruments for each request, keyed by route pattern.
func (m *HTTPMetrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			start := time.Now()
			method := metric.WithAttributes(attribute.String("http.request.method", r.Method))

			m.inFlight.Add(ctx, 1, method)
			defer m.inFlight.Add(ctx, -1, method)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", routePattern(r, "unmatched")),
				attribute.String("http.response.status_code", strconv.Itoa(rec.status)),
			)
			m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requests.Add(ctx, 1, attrs)
			m.size.Record(ctx, rec.written, attrs)
		})
	}
}
