// Package tracing builds the process-wide TracerProvider both binaries
// install before serving traffic, so every "github.com/movein/feedback-pipeline/..."
// tracer created with otel.Tracer resolves to a real, sampled provider
// instead of the no-op default.
package tracing
