// Package http serves the operational endpoints for parkingd. Domain
// operations are not exposed here; availability, reporting, and
// confirmation run through the service packages directly.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// readyTimeout bounds a readiness probe so a stuck check cannot hold the
// probe connection open past the kubelet's own deadline.
const readyTimeout = 2 * time.Second

// ReadinessChecker reports whether the service is ready to serve traffic.
// The ingest scheduler implements it: ready means at least one ingestion
// run has completed.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes health, readiness, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	ready      ReadinessChecker
	logger     *slog.Logger
	started    time.Time
}

// NewServer creates the ops server on its own mux.
func NewServer(addr string, ready ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		ready:   ready,
		logger:  logger,
		started: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("ops server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type healthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

type readyResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:        "healthy",
		Service:       "parkingd",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.ready.CheckReadiness(ctx); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, readyResponse{
			Status: "not ready",
			Reason: err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, readyResponse{Status: "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write ops response", "error", err)
	}
}
