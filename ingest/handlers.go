package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
	"go.opentelemetry.io/otel"

	"github.com/movein/feedback-pipeline/feedback"
	"github.com/movein/feedback-pipeline/health"
)

// tracerName identifies this package's spans in any configured exporter.
const tracerName = "github.com/movein/feedback-pipeline/ingest"

type handlers struct {
	publisher   EventPublisher
	history     HistoryReader
	healthCheck func(ctx context.Context) health.Status
}

// submitFeedbackResponse is returned on a successful POST /v1/feedback.
type submitFeedbackResponse struct {
	FeedbackID string `json:"feedback_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// submitFeedback validates the request body against feedback.EventSchema
// and publishes it onto the queue, mirroring the worker's own step-1
// validation so a client gets the same rejection the worker would have
// dead-lettered later, but synchronously and before it ever touches the
// queue.
func (h *handlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), "ingest.submit_feedback")
	defer span.End()

	var event feedback.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		feedbackRejectedTotal.WithLabelValues("invalid_json").Inc()
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := event.Validate(); err != nil {
		feedbackRejectedTotal.WithLabelValues("validation_error").Inc()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.publisher.Publish(ctx, event); err != nil {
		feedbackRejectedTotal.WithLabelValues("publish_error").Inc()
		hlog.FromRequest(r).Error().Err(err).Str("feedback_id", event.FeedbackID).Msg("failed to publish feedback event")
		writeError(w, http.StatusServiceUnavailable, "failed to accept feedback")
		return
	}

	feedbackAcceptedTotal.Inc()
	writeJSON(w, http.StatusAccepted, submitFeedbackResponse{FeedbackID: event.FeedbackID})
}

// driverHistory returns a driver's reconstructed score timeline and raw
// feedback records, newest first.
func (h *handlers) driverHistory(w http.ResponseWriter, r *http.Request) {
	driverID, err := strconv.ParseInt(chi.URLParam(r, "driverID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "driverID must be an integer")
		return
	}

	hist, err := h.history.Reconstruct(r.Context(), driverID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Int64("driver_id", driverID).Msg("failed to reconstruct driver history")
		writeError(w, http.StatusInternalServerError, "failed to load driver history")
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyz runs the configured dependency health check and returns 503 when
// unhealthy, the signal a load balancer or orchestrator uses to stop
// routing traffic to this instance.
func (h *handlers) readyz(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck == nil {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	status := h.healthCheck(r.Context())
	if status.IsUnhealthy() {
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
