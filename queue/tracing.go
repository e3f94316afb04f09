package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// tracerName identifies this package's spans in any configured exporter.
const tracerName = "github.com/movein/feedback-pipeline/queue"

// amqpHeaderCarrier adapts amqp.Table to propagation.TextMapCarrier so a
// span's trace context can ride in a message's headers the same way it
// would ride in an HTTP request's headers.
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c amqpHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// injectTraceContext writes the span context carried by ctx into headers,
// creating the table if headers is nil. Used on the publish side so a
// worker consuming the message can continue the same trace.
func injectTraceContext(ctx context.Context, headers amqp.Table) amqp.Table {
	if headers == nil {
		headers = amqp.Table{}
	}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(headers))
	return headers
}

// extractTraceContext reads a span context out of headers and returns a
// context carrying it, so the consumer's span becomes a child of the
// publisher's span instead of starting a new, disconnected trace.
func extractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, amqpHeaderCarrier(headers))
}
