package queue

import "time"

// Dead-letter header names, written by the consumer side whenever a
// delivery cannot be processed and is routed to the DLQ.
const (
	HeaderErrorType      = "x-error-type"
	HeaderErrorMessage   = "x-error-message"
	HeaderFailedAt       = "x-failed-at"
	HeaderOriginalQueue  = "x-original-queue"
	HeaderErrorTraceback = "x-error-traceback"
)

// maxTracebackLen bounds the optional x-error-traceback header.
const maxTracebackLen = 1000

// Error type vocabulary for the x-error-type header.
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeDatabase   = "database_error"
	ErrorTypeUnknown    = "unknown_error"
)

// DeadLetter carries the diagnostic context written to the DLQ headers
// alongside the original message body.
type DeadLetter struct {
	ErrorType    string
	ErrorMessage string
	Traceback    string
	OriginalQueue string
	FailedAt     time.Time
}

func (d DeadLetter) headers() map[string]any {
	h := map[string]any{
		HeaderErrorType:     d.ErrorType,
		HeaderErrorMessage:  d.ErrorMessage,
		HeaderFailedAt:      d.FailedAt.UTC().Format(time.RFC3339),
		HeaderOriginalQueue: d.OriginalQueue,
	}
	if d.Traceback != "" {
		tb := d.Traceback
		if len(tb) > maxTracebackLen {
			tb = tb[:maxTracebackLen]
		}
		h[HeaderErrorTraceback] = tb
	}
	return h
}
