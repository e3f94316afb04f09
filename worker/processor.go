package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/movein/feedback-pipeline/alert"
	"github.com/movein/feedback-pipeline/durable"
	"github.com/movein/feedback-pipeline/feedback"
	"github.com/movein/feedback-pipeline/hotstore"
	"github.com/movein/feedback-pipeline/queue"
	"github.com/movein/feedback-pipeline/sentiment"
)

// tracerName identifies this package's spans in any configured exporter.
const tracerName = "github.com/movein/feedback-pipeline/worker"

// ProcessorConfig supplies a Processor's collaborators and tunables.
type ProcessorConfig struct {
	Analyzer sentiment.Analyzer
	Hot      hotstore.Store
	Durable  durable.Store
	Alerts   alert.Sink

	// EMAAlpha is the exponential smoothing factor, default 0.1.
	EMAAlpha float64
	// AlertThreshold triggers an alert when the new average falls below it.
	AlertThreshold float64
	// Cooldown is the alert-lock TTL, default 24h.
	Cooldown time.Duration

	Logger *slog.Logger
}

// Delivery is the subset of *queue.Delivery's behavior Processor depends
// on, narrowed to an interface so tests can supply a fake without a live
// AMQP connection.
type Delivery interface {
	Body() []byte
	Ack() error
	Requeue() error
	DeadLetter(ctx context.Context, dl queue.DeadLetter) error
	TraceContext(ctx context.Context) context.Context
}

// Processor implements the nine-step per-message orchestration described
// in the package doc. It owns no transport state; Run drives it against
// deliveries pulled from a queue.Consumer.
type Processor struct {
	cfg ProcessorConfig
}

// NewProcessor validates cfg's collaborators are non-nil and applies
// default tunables, then returns a ready Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("worker: ProcessorConfig.Analyzer is required")
	}
	if cfg.Hot == nil {
		return nil, fmt.Errorf("worker: ProcessorConfig.Hot is required")
	}
	if cfg.Durable == nil {
		return nil, fmt.Errorf("worker: ProcessorConfig.Durable is required")
	}
	if cfg.Alerts == nil {
		return nil, fmt.Errorf("worker: ProcessorConfig.Alerts is required")
	}
	if cfg.EMAAlpha == 0 {
		cfg.EMAAlpha = 0.1
	}
	if cfg.AlertThreshold == 0 {
		cfg.AlertThreshold = 2.5
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Processor{cfg: cfg}, nil
}

// Handle runs the full nine-step sequence for one delivery, always
// concluding with either Ack (success, or an idempotent duplicate) or a
// DeadLetter+Nack (any failure). It never returns an error: every failure
// path is terminal and handled in place, matching the worker's
// dead-letter-everything-uncaught contract.
func (p *Processor) Handle(ctx context.Context, d Delivery) {
	logger := p.cfg.Logger

	ctx = d.TraceContext(ctx)
	ctx, span := otel.Tracer(tracerName).Start(ctx, "worker.handle_feedback")
	defer span.End()

	// Step 1: parse and validate.
	var event feedback.Event
	if err := json.Unmarshal(d.Body(), &event); err != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeValidation, fmt.Sprintf("invalid message format: %v", err))
		return
	}
	if err := event.Validate(); err != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeValidation, fmt.Sprintf("schema validation failed: %v", err))
		return
	}

	// Step 2: idempotency check.
	exists, err := p.cfg.Durable.Exists(ctx, event.FeedbackID)
	if err != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeDatabase, fmt.Sprintf("idempotency check failed: %v", err))
		return
	}
	if exists {
		logger.Info("duplicate feedback skipped", "feedback_id", event.FeedbackID)
		if err := d.Ack(); err != nil {
			logger.Error("failed to ack duplicate delivery", "feedback_id", event.FeedbackID, "error", err)
		}
		return
	}

	// Step 3: score.
	score := p.cfg.Analyzer.Analyze(event.Text)

	// Step 4: read current reputation.
	rep, err := p.cfg.Hot.GetReputation(ctx, event.DriverID)
	if err != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeUnknown, fmt.Sprintf("hot store read failed: %v", err))
		return
	}

	// Step 5: EMA update.
	newAvg := p.cfg.EMAAlpha*score + (1-p.cfg.EMAAlpha)*rep.AvgScore

	// Step 6: write hot reputation.
	err = p.cfg.Hot.SetReputation(ctx, feedback.Reputation{
		DriverID:    event.DriverID,
		AvgScore:    newAvg,
		LastUpdated: event.Timestamp,
	})
	if err != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeUnknown, fmt.Sprintf("hot store write failed: %v", err))
		return
	}

	// Step 7: insert durable row.
	scored := feedback.Scored{Event: event, SentimentScore: score}
	if err := p.cfg.Durable.Insert(ctx, scored); err != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeDatabase, fmt.Sprintf("durable insert failed: %v", err))
		return
	}

	// Step 8: alert decision.
	p.maybeAlert(ctx, event.DriverID, newAvg)

	// Step 9: acknowledge.
	if err := d.Ack(); err != nil {
		logger.Error("failed to ack delivery", "feedback_id", event.FeedbackID, "error", err)
	}
}

func (p *Processor) maybeAlert(ctx context.Context, driverID int64, newAvg float64) {
	if newAvg >= p.cfg.AlertThreshold {
		return
	}

	logger := p.cfg.Logger
	locked, err := p.cfg.Hot.CheckAlertLock(ctx, driverID)
	if err != nil {
		logger.Error("alert lock check failed", "driver_id", driverID, "error", err)
		return
	}
	if locked {
		logger.Debug("alert already sent, suppressing", "driver_id", driverID)
		return
	}

	p.cfg.Alerts.Emit(driverID, newAvg)
	if err := p.cfg.Hot.SetAlertLock(ctx, driverID, p.cfg.Cooldown); err != nil {
		logger.Error("failed to set alert lock", "driver_id", driverID, "error", err)
	}
}

// deadLetter publishes d's original body to the dead-letter queue with
// diagnostic headers, then negatively acknowledges without requeue.
func (p *Processor) deadLetter(ctx context.Context, d Delivery, errType, message string) {
	err := d.DeadLetter(ctx, queue.DeadLetter{
		ErrorType:    errType,
		ErrorMessage: message,
		FailedAt:     time.Now(),
	})
	if err != nil {
		p.cfg.Logger.Error("failed to dead-letter message", "error_type", errType, "error", err)
		return
	}
	p.cfg.Logger.Warn("message dead-lettered", "error_type", errType, "error_message", message)
}

// recoverUnknown converts a panic during Handle into an unknown_error
// dead-letter, the Go analogue of the original worker's catch-all
// "except Exception" clause.
func (p *Processor) recoverUnknown(ctx context.Context, d Delivery) {
	if r := recover(); r != nil {
		p.deadLetter(ctx, d, queue.ErrorTypeUnknown, fmt.Sprintf("panic: %v", r))
	}
}
