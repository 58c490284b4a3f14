// Package server exposes the SDK-facing ingest HTTP surface: the
// store, envelope, and security endpoints, project-scoped and DSN-gated.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
	"faultline/internal/usecase/ingest"
)

const maxBodyBytes = 1 << 20

type Server struct {
	svc  *ingest.Service
	http *http.Server
}

func New(addr string, svc *ingest.Service) *Server {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/{projectID}", func(r chi.Router) {
		r.Post("/store/", s.handleStore)
		r.Post("/envelope/", s.handleEnvelope)
		r.Post("/security/", s.handleSecurity)
	})

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "server.http"))
	logging.Info(logCtx, "http server listening", slog.String("addr", s.http.Addr))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.http.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	logging.Info(logCtx, "http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(context.Background(), w, http.StatusOK, map[string]string{"status": "ok"})
}
