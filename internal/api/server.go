package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/finbots-io/edgarbot/internal/middleware"
	"github.com/finbots-io/edgarbot/internal/progress"
	"github.com/finbots-io/edgarbot/internal/robot"
	"github.com/finbots-io/edgarbot/internal/telemetry"
)

// ReportSource yields a point-in-time snapshot of the active run.
type ReportSource interface {
	Report() robot.RunReport
}

// EventSource yields recently observed progress events, newest last.
type EventSource interface {
	Events(limit int) []progress.Event
}

// Config carries the server-level knobs.
type Config struct {
	// APIKey gates all routes when non-empty.
	APIKey string
	// RequestTimeout bounds one handler execution; zero means 60s.
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the running robot. Both sources may be nil;
// the affected routes then answer 503 instead of panicking.
type Server struct {
	router chi.Router
	report ReportSource
	events EventSource
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(report ReportSource, events EventSource, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	s := &Server{
		report: report,
		events: events,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.APIKey != "" {
		r.Use(middleware.APIKey(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/results", s.listResults)
		r.Get("/events", s.listEvents)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.report == nil {
		writeError(w, http.StatusServiceUnavailable, "no run attached")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
