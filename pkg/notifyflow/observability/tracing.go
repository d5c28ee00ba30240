package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("notifyflow")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRouteSpan starts a span for one RouteEvent call.
	StartRouteSpan(ctx context.Context, tenantID, kind string) (context.Context, trace.Span)

	// StartDeliverySpan starts a child span for one handler execution.
	StartDeliverySpan(ctx context.Context, channel, target string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// Configure the provider before calling this function:
//
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartRouteSpan starts a span for one dispatch.
func (m *otelSpanManager) StartRouteSpan(ctx context.Context, tenantID, kind string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "notifyflow.route",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("event.kind", kind),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartDeliverySpan starts a span for one handler execution.
func (m *otelSpanManager) StartDeliverySpan(ctx context.Context, channel, target string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "notifyflow.deliver."+channel,
		trace.WithAttributes(
			attribute.String("delivery.channel", channel),
			attribute.String("delivery.target", target),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}
