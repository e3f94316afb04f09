package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/movein/feedback-pipeline/feedback"
)

// connectionHeartbeat, with the "en_US" locale set in dialConfig, applies to
// every AMQP connection this package opens, matching the original worker's
// connection parameters.
const connectionHeartbeat = 600 * time.Second

func dialConfig() amqp.Config {
	return amqp.Config{Heartbeat: connectionHeartbeat, Locale: "en_US"}
}

// Publisher publishes FeedbackEvent messages onto a durable queue, and is
// also used by the consumer side to republish failed deliveries onto the
// paired dead-letter queue.
type Publisher struct {
	queueName string
	dlqName   string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher dials url and declares dlqName and queueName (both durable,
// with no dead-letter arguments) up front, mirroring the original
// publisher's connect-time topology declaration.
func NewPublisher(url, queueName, dlqName string) (*Publisher, error) {
	conn, err := amqp.DialConfig(url, dialConfig())
	if err != nil {
		return nil, fmt.Errorf("queue: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("queue: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue: declare dlq %s: %w", dlqName, err)
	}

	// No x-dead-letter-exchange args: dead-lettering is done entirely at the
	// application level (Delivery.DeadLetter/Publisher.DeadLetter), which
	// attaches per-failure x-error-* headers the broker's own auto-DLX has no
	// way to produce. Declaring both would dead-letter every failed message
	// twice — once from the explicit publish, once from the broker's Nack.
	_, err = ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("queue: declare queue %s: %w", queueName, err)
	}

	return &Publisher{queueName: queueName, dlqName: dlqName, conn: conn, ch: ch}, nil
}

// Publish encodes event as JSON and publishes it to the feedback queue
// with persistent delivery mode. The publishing span's context travels
// with the message as AMQP headers, so the worker that eventually
// consumes it continues the same trace instead of starting a new one.
func (p *Publisher) Publish(ctx context.Context, event feedback.Event) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "queue.publish")
	defer span.End()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("queue: marshal event %s: %w", event.FeedbackID, err)
	}

	headers := injectTraceContext(ctx, amqp.Table{"feedback_id": event.FeedbackID})

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
	})
}

// PublishRaw JSON-encodes v and publishes it to queueName with persistent
// delivery mode. Used for traffic that isn't a feedback.Event, such as
// alert notifications routed to a separate queue.
func (p *Publisher) PublishRaw(ctx context.Context, queueName string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("queue: marshal: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// DeadLetter republishes body to the dead-letter queue with diagnostic
// headers describing why the original delivery failed.
func (p *Publisher) DeadLetter(ctx context.Context, body []byte, dl DeadLetter) error {
	if dl.OriginalQueue == "" {
		dl.OriginalQueue = p.queueName
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ch.PublishWithContext(ctx, "", p.dlqName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table(dl.headers()),
		Body:         body,
	})
}

// DeclareQueue declares an additional durable queue on this publisher's
// channel, for traffic published via PublishRaw that isn't the main
// feedback_queue/feedback_dlq pair declared at construction time.
func (p *Publisher) DeclareQueue(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare queue %s: %w", name, err)
	}
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
