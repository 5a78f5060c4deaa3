// Package ops serves operational endpoints next to the API: Prometheus metrics,
// pprof and a liveness probe.
package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"gospc/internal/metrics"
)

// Server is the operational HTTP listener
type Server struct {
	srv    *http.Server
	logger zerolog.Logger
}

// NewRouter builds the ops routes
func NewRouter(reg *metrics.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", reg.Handler())
	r.Mount("/debug", middleware.Profiler())
	return r
}

// NewServer creates an ops server on addr
func NewServer(addr string, reg *metrics.Registry, logger zerolog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(reg),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With().Str("component", "ops").Logger(),
	}
}

// Start listens in the background until Shutdown
func (s *Server) Start() {
	go func() {
		s.logger.Info().Str("addr", s.srv.Addr).Msg("ops server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("ops server stopped")
		}
	}()
}

// Shutdown stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
