package tracing

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// NewProvider builds a TracerProvider tagged with serviceName and installs
// it as the global provider otel.Tracer resolves against.
//
// No exporter is attached: a feedback event's span still carries a real
// trace ID from ingestion through the worker's acknowledgement (propagated
// via the AMQP message headers queue.Publisher/Delivery inject and
// extract), but nothing ships those spans to a collector. Wiring a real
// backend is the deploying operator's concern, not this pipeline's.
func NewProvider(serviceName string, logger *slog.Logger) *sdktrace.TracerProvider {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to build trace resource, using default", "error", err)
		}
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}
