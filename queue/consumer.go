package queue

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Reconnection backoff bounds, grounded on the same capped-exponential
// shape used for consumer reconnects in the wider AMQP091 ecosystem.
const (
	baseReconnectDelay = 1 * time.Second
	maxReconnectDelay  = 30 * time.Second
)

// Delivery wraps an amqp091 delivery with the operations the worker needs:
// positive ack, negative ack, and dead-lettering with diagnostic headers.
type Delivery struct {
	body []byte

	raw amqp.Delivery
	ch  *amqp.Channel
	dlq string
}

// Body returns the delivery's raw message body.
func (d *Delivery) Body() []byte {
	return d.body
}

// Ack acknowledges successful processing.
func (d *Delivery) Ack() error {
	return d.raw.Ack(false)
}

// Nack negatively acknowledges without requeue, used after DeadLetter or
// when the caller wants the broker to drop the message outright.
func (d *Delivery) Nack() error {
	return d.raw.Nack(false, false)
}

// Requeue negatively acknowledges with requeue, used when shutting down
// mid-delivery so the message is redelivered rather than lost.
func (d *Delivery) Requeue() error {
	return d.raw.Nack(false, true)
}

// TraceContext extracts the span context the publisher attached to this
// delivery's headers, returning a context the worker's span can continue
// as a child of the publish-side span rather than starting a new trace.
func (d *Delivery) TraceContext(ctx context.Context) context.Context {
	return extractTraceContext(ctx, d.raw.Headers)
}

// DeadLetter republishes the original body to the dead-letter queue with
// diagnostic headers, then Nacks the original delivery without requeue.
func (d *Delivery) DeadLetter(ctx context.Context, dl DeadLetter) error {
	if dl.OriginalQueue == "" {
		dl.OriginalQueue = d.raw.RoutingKey
	}
	err := d.ch.PublishWithContext(ctx, "", d.dlq, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table(dl.headers()),
		Body:         d.body,
	})
	if err != nil {
		return fmt.Errorf("queue: publish to dlq %s: %w", d.dlq, err)
	}
	return d.Nack()
}

// IsClosed lets Consumer satisfy health.AMQPConnChecker without the health
// package importing amqp091 directly.
func (c *Consumer) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == nil || c.conn.IsClosed()
}

// Consumer consumes feedback_queue with manual acknowledgement and a
// bounded prefetch, reconnecting with capped exponential backoff on
// connection loss.
type Consumer struct {
	url       string
	queueName string
	dlqName   string
	prefetch  int
	logger    *zap.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	closed  bool
	closeCh chan struct{}
}

// NewConsumer dials url and establishes an initial channel with the given
// prefetch, declaring dlqName and queueName (both durable) itself on every
// connect, so it does not depend on a publisher having declared them.
func NewConsumer(url, queueName, dlqName string, prefetch int, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{
		url:       url,
		queueName: queueName,
		dlqName:   dlqName,
		prefetch:  prefetch,
		logger:    logger,
		closeCh:   make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Consumer) connect() error {
	conn, err := amqp.DialConfig(c.url, dialConfig())
	if err != nil {
		return fmt.Errorf("queue: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("queue: open channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("queue: set qos: %w", err)
	}

	if _, err := ch.QueueDeclare(c.dlqName, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("queue: declare dlq %s: %w", c.dlqName, err)
	}
	// No x-dead-letter-exchange here: DeadLetter already republishes the
	// message to the DLQ with diagnostic headers before Nacking, and a
	// broker-level DLX would Nack-trigger a second, header-less copy of the
	// same message into feedback_dlq.
	_, err = ch.QueueDeclare(c.queueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("queue: declare queue %s: %w", c.queueName, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.ch = ch
	c.mu.Unlock()
	return nil
}

// Deliveries starts consuming and returns a channel of wrapped deliveries.
// It runs a background goroutine that reconnects with capped exponential
// backoff on connection loss until ctx is cancelled or Close is called.
func (c *Consumer) Deliveries(ctx context.Context) <-chan *Delivery {
	out := make(chan *Delivery)
	go func() {
		defer close(out)
		for {
			err := c.consumeInto(ctx, out)
			if err == nil {
				return
			}

			select {
			case <-c.closeCh:
				return
			case <-ctx.Done():
				return
			default:
			}

			c.logger.Warn("queue consumer lost connection, reconnecting", zap.Error(err))

			for attempt := 0; ; attempt++ {
				select {
				case <-c.closeCh:
					return
				case <-ctx.Done():
					return
				case <-time.After(backoffDelay(attempt)):
				}

				if err := c.connect(); err != nil {
					c.logger.Error("queue reconnect failed", zap.Int("attempt", attempt+1), zap.Error(err))
					continue
				}
				c.logger.Info("queue reconnected", zap.Int("attempts", attempt+1))
				break
			}
		}
	}()
	return out
}

func backoffDelay(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}

func (c *Consumer) consumeInto(ctx context.Context, out chan<- *Delivery) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("queue: channel is nil")
	}

	deliveries, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("queue: delivery channel closed")
			}
			d := &Delivery{body: raw.Body, raw: raw, ch: ch, dlq: c.dlqName}
			select {
			case out <- d:
			case <-ctx.Done():
				d.Requeue()
				return nil
			}
		}
	}
}

// Close shuts the consumer down, closing its channel and connection.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	var firstErr error
	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
