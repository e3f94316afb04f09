package queue

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// withTestTracing installs a TraceContext propagator and a sampling
// TracerProvider for the duration of a test, restoring the prior globals
// afterward so tests in other packages aren't affected.
func withTestTracing(t *testing.T) {
	t.Helper()
	prevProvider := otel.GetTracerProvider()
	prevPropagator := otel.GetTextMapPropagator()

	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})

	t.Cleanup(func() {
		otel.SetTracerProvider(prevProvider)
		otel.SetTextMapPropagator(prevPropagator)
	})
}

func TestInjectExtractTraceContext_RoundTrips(t *testing.T) {
	withTestTracing(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "publish")
	wantSpanContext := span.SpanContext()
	span.End()

	headers := injectTraceContext(ctx, nil)
	if headers["traceparent"] == nil {
		t.Fatal("expected traceparent header to be set")
	}

	extractedCtx := extractTraceContext(context.Background(), headers)
	got := trace.SpanContextFromContext(extractedCtx)
	if got.TraceID() != wantSpanContext.TraceID() {
		t.Errorf("trace ID = %s, want %s", got.TraceID(), wantSpanContext.TraceID())
	}
	if got.SpanID() != wantSpanContext.SpanID() {
		t.Errorf("span ID = %s, want %s", got.SpanID(), wantSpanContext.SpanID())
	}
}

func TestExtractTraceContext_NilHeaders_ReturnsUnchangedContext(t *testing.T) {
	withTestTracing(t)

	ctx := context.Background()
	got := extractTraceContext(ctx, nil)
	if got != ctx {
		t.Error("expected extractTraceContext to return the same context when headers is nil")
	}
}

func TestInjectTraceContext_PreservesExistingHeaders(t *testing.T) {
	withTestTracing(t)

	ctx, span := otel.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := injectTraceContext(ctx, amqp.Table{"feedback_id": "fb-1"})
	if headers["feedback_id"] != "fb-1" {
		t.Errorf("feedback_id header = %v, want fb-1", headers["feedback_id"])
	}
	if headers["traceparent"] == nil {
		t.Error("expected traceparent header alongside the existing header")
	}
}
