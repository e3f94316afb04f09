package alert

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeRawPublisher struct {
	queueName string
	body      any
	err       error
	calls     int
}

func (p *fakeRawPublisher) PublishRaw(_ context.Context, queueName string, v any) error {
	p.calls++
	p.queueName = queueName
	p.body = v
	return p.err
}

func TestLogSink_Emit_LogsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	sink := NewLogSink(logger)
	sink.Emit(42, 1.8)

	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("expected WARN level log, got: %s", out)
	}
	if !strings.Contains(out, "driver_id=42") {
		t.Errorf("expected driver_id=42 in log, got: %s", out)
	}
	if !strings.Contains(out, "score=1.8") {
		t.Errorf("expected score=1.8 in log, got: %s", out)
	}
}

func TestLogSink_NilLoggerFallsBackToDefault(t *testing.T) {
	sink := NewLogSink(nil)
	if sink.logger == nil {
		t.Fatal("expected NewLogSink(nil) to fall back to a default logger")
	}
	// Should not panic.
	sink.Emit(1, 0.0)
}

func TestQueueSink_Emit_PublishesNotificationToDriverAlertsQueue(t *testing.T) {
	pub := &fakeRawPublisher{}
	sink := NewQueueSink(pub, nil)

	sink.Emit(42, 1.8)

	if pub.calls != 1 {
		t.Fatalf("expected 1 publish call, got %d", pub.calls)
	}
	if pub.queueName != DriverAlertsQueue {
		t.Errorf("queueName = %q, want %q", pub.queueName, DriverAlertsQueue)
	}
	n, ok := pub.body.(Notification)
	if !ok {
		t.Fatalf("published body type = %T, want Notification", pub.body)
	}
	if n.DriverID != 42 || n.Score != 1.8 {
		t.Errorf("notification = %+v, want driver 42 score 1.8", n)
	}
}

func TestQueueSink_Emit_PublishErrorIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	pub := &fakeRawPublisher{err: errors.New("channel closed")}
	sink := NewQueueSink(pub, logger)

	// Emit has no error return; this only verifies it doesn't panic and
	// that the failure surfaces in the log instead.
	sink.Emit(7, 0.5)

	if !strings.Contains(buf.String(), "failed to publish alert notification") {
		t.Errorf("expected publish failure to be logged, got: %s", buf.String())
	}
}
