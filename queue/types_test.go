package queue

import (
	"strings"
	"testing"
	"time"
)

func TestDeadLetterHeaders(t *testing.T) {
	failedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	dl := DeadLetter{
		ErrorType:     ErrorTypeValidation,
		ErrorMessage:  "schema mismatch",
		OriginalQueue: "feedback_queue",
		FailedAt:      failedAt,
	}

	h := dl.headers()
	if h[HeaderErrorType] != ErrorTypeValidation {
		t.Errorf("%s = %v, want %v", HeaderErrorType, h[HeaderErrorType], ErrorTypeValidation)
	}
	if h[HeaderErrorMessage] != "schema mismatch" {
		t.Errorf("%s = %v, want %q", HeaderErrorMessage, h[HeaderErrorMessage], "schema mismatch")
	}
	if h[HeaderOriginalQueue] != "feedback_queue" {
		t.Errorf("%s = %v, want feedback_queue", HeaderOriginalQueue, h[HeaderOriginalQueue])
	}
	if h[HeaderFailedAt] != "2026-01-02T03:04:05Z" {
		t.Errorf("%s = %v, want RFC3339 UTC", HeaderFailedAt, h[HeaderFailedAt])
	}
	if _, ok := h[HeaderErrorTraceback]; ok {
		t.Error("expected no traceback header when Traceback is empty")
	}
}

func TestDeadLetterHeaders_TracebackTruncated(t *testing.T) {
	dl := DeadLetter{
		ErrorType:    ErrorTypeUnknown,
		ErrorMessage: "boom",
		Traceback:    strings.Repeat("x", 2000),
		FailedAt:     time.Now(),
	}
	h := dl.headers()
	tb, ok := h[HeaderErrorTraceback].(string)
	if !ok {
		t.Fatal("expected traceback header to be present")
	}
	if len(tb) != maxTracebackLen {
		t.Errorf("len(traceback) = %d, want %d", len(tb), maxTracebackLen)
	}
}

func TestBackoffDelay_CapsAtMax(t *testing.T) {
	if d := backoffDelay(0); d != baseReconnectDelay {
		t.Errorf("backoffDelay(0) = %v, want %v", d, baseReconnectDelay)
	}
	if d := backoffDelay(10); d != maxReconnectDelay {
		t.Errorf("backoffDelay(10) = %v, want cap %v", d, maxReconnectDelay)
	}
}

func TestBackoffDelay_Monotonic(t *testing.T) {
	prev := backoffDelay(0)
	for attempt := 1; attempt < 5; attempt++ {
		d := backoffDelay(attempt)
		if d < prev {
			t.Errorf("backoffDelay(%d) = %v, want >= previous %v", attempt, d, prev)
		}
		prev = d
	}
}
