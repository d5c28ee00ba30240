package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records notifyflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records one RouteEvent call and how it ended.
	RecordDispatch(ctx context.Context, kind, outcome string, duration time.Duration)

	// RecordDelivery records one handler execution.
	RecordDelivery(ctx context.Context, channel string, success bool, duration time.Duration)

	// RecordTransition records one tenant status observation.
	RecordTransition(ctx context.Context, outcome string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	deliveries      metric.Int64Counter
	deliveryLatency metric.Float64Histogram
	transitions     metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("notifyflow")

	dispatches, err := meter.Int64Counter("notifyflow.dispatch.count",
		metric.WithDescription("Number of RouteEvent calls"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("notifyflow.dispatch.latency_ms",
		metric.WithDescription("RouteEvent latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("notifyflow.delivery.count",
		metric.WithDescription("Number of handler executions"),
	)
	if err != nil {
		return nil, err
	}

	deliveryLatency, err := meter.Float64Histogram("notifyflow.delivery.latency_ms",
		metric.WithDescription("Handler execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter("notifyflow.transition.count",
		metric.WithDescription("Number of tenant status observations"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		deliveries:      deliveries,
		deliveryLatency: deliveryLatency,
		transitions:     transitions,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records a dispatch.
func (m *otelMetrics) RecordDispatch(ctx context.Context, kind, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.dispatches.Add(ctx, 1, attrs)
	m.dispatchLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordDelivery records a handler execution.
func (m *otelMetrics) RecordDelivery(ctx context.Context, channel string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("success", success),
	)
	m.deliveries.Add(ctx, 1, attrs)
	m.deliveryLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordTransition records a tenant status observation.
func (m *otelMetrics) RecordTransition(ctx context.Context, outcome string) {
	m.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
