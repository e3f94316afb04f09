// Package alert implements the low-score alerting contract: emit(driver_id,
// score) with no return value, no retries, and no backpressure into the
// worker. The default Sink logs; a QueueSink republishes onto a separate
// queue for an external notifier to consume.
package alert

import (
	"context"
	"log/slog"
	"time"
)

// DriverAlertsQueue is the queue QueueSink publishes notifications to.
const DriverAlertsQueue = "driver_alerts"

// Notification is the JSON body published to DriverAlertsQueue.
type Notification struct {
	DriverID  int64     `json:"driver_id"`
	Score     float64   `json:"score"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Sink is the alerting capability the worker depends on.
type Sink interface {
	Emit(driverID int64, score float64)
}

// LogSink emits alerts as warning-level structured log lines, the direct
// analogue of the original worker's AlertingService.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a LogSink. A nil logger falls back to slog.Default().
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(driverID int64, score float64) {
	s.logger.Warn("driver score dropped below alert threshold",
		"alert_type", "low_score",
		"driver_id", driverID,
		"score", score,
	)
}

// rawPublisher is the narrow publishing capability QueueSink depends on,
// satisfied by *queue.Publisher; narrowed so tests can fake it without a
// live broker.
type rawPublisher interface {
	PublishRaw(ctx context.Context, queueName string, v any) error
}

// QueueSink republishes each alert as a Notification (driver_id, score,
// emitted_at) onto a dedicated "driver_alerts" queue, for an external notification
// service to consume independently of the processor worker. Publish
// failures are logged, never returned: the Sink contract has no error path.
// The caller is responsible for declaring driver_alerts as a durable queue
// before wiring a QueueSink in (see cmd/feedback-worker).
type QueueSink struct {
	publisher rawPublisher
	logger    *slog.Logger
}

// NewQueueSink wraps an already-connected publisher. Emit names the
// driver_alerts queue on every publish, so the publisher's own queue does
// not matter.
func NewQueueSink(publisher rawPublisher, logger *slog.Logger) *QueueSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueSink{publisher: publisher, logger: logger}
}

func (s *QueueSink) Emit(driverID int64, score float64) {
	n := Notification{DriverID: driverID, Score: score, EmittedAt: time.Now().UTC()}
	if err := s.publisher.PublishRaw(context.Background(), DriverAlertsQueue, n); err != nil {
		s.logger.Warn("failed to publish alert notification", "driver_id", driverID, "error", err)
	}
}
