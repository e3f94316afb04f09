package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/movein/feedback-pipeline/feedback"
	"github.com/movein/feedback-pipeline/health"
)

// EventPublisher is the queue capability submitFeedback depends on,
// narrowed from *queue.Publisher so tests can substitute a fake.
type EventPublisher interface {
	Publish(ctx context.Context, event feedback.Event) error
}

// HistoryReader is the read-side capability the history route depends on,
// narrowed from *history.Reconstructor.
type HistoryReader interface {
	Reconstruct(ctx context.Context, driverID int64) (feedback.History, error)
}

// Deps supplies Server's collaborators.
type Deps struct {
	Port        int
	MetricsPath string
	ReadTimeout time.Duration

	Publisher   EventPublisher
	History     HistoryReader
	HealthCheck func(ctx context.Context) health.Status
}

// Server is the feedback-ingest HTTP server.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
}

// New builds a Server with its route table and middleware chain wired up.
// logWriter receives structured request logs; a nil logWriter defaults to
// os.Stdout.
func New(deps Deps, logWriter io.Writer) *Server {
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}
	if deps.ReadTimeout == 0 {
		deps.ReadTimeout = 5 * time.Second
	}

	if logWriter == nil {
		logWriter = os.Stdout
	}
	logger := zerolog.New(logWriter).With().Timestamp().Caller().Logger()

	r := chi.NewRouter()
	r.Use(
		hlog.NewHandler(logger),
		metricsMiddleware,
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		hlog.RemoteAddrHandler("ip"),
		middleware.RequestID,
		correlationIDMiddleware,
		middleware.Recoverer,
	)

	h := &handlers{publisher: deps.Publisher, history: deps.History, healthCheck: deps.HealthCheck}
	r.Post("/v1/feedback", h.submitFeedback)
	r.Get("/v1/drivers/{driverID}/history", h.driverHistory)
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Handle(deps.MetricsPath, promhttp.HandlerFor(Registry(), promhttp.HandlerOpts{}))

	return &Server{
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", deps.Port),
			Handler:      r,
			ReadTimeout:  deps.ReadTimeout,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
	}
}

// Router exposes the underlying chi router, used by tests that want to
// drive requests with httptest without binding a real port.
func (s *Server) Router() http.Handler { return s.router }

// Start serves HTTP until SIGTERM/SIGINT, then shuts down gracefully within
// 30 seconds.
func (s *Server) Start() error {
	log.Info().Msgf("starting feedback-ingest server on %s", s.httpServer.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ingest: server failed: %w", err)
	case <-stop:
	}

	log.Info().Msg("shutting down feedback-ingest server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ingest: shutdown failed: %w", err)
	}
	log.Info().Msg("feedback-ingest server stopped")
	return nil
}

// correlationIDMiddleware echoes or assigns X-Correlation-ID and attaches it
// to the request logger's context.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		w.Header().Set("X-Correlation-ID", correlationID)

		l := hlog.FromRequest(r)
		l.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("correlation_id", correlationID)
		})
		next.ServeHTTP(w, r)
	})
}
