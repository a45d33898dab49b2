// Package server exposes the catalog, search and sync over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/pipeline"
	"github.com/lepinkainen/ook/internal/search"
)

// Catalog is the read side of the library used by the API.
type Catalog interface {
	Stats(ctx context.Context) (library.Stats, error)
	Record(ctx context.Context, key string) (*library.Record, error)
	ListBooks(ctx context.Context, opts library.ListOptions) ([]library.Record, error)
	Subjects(ctx context.Context) ([]string, error)
}

// Server serves the HTTP API. At most one sync runs at a time.
type Server struct {
	catalog  Catalog
	searcher *search.Searcher
	orch     *pipeline.Orchestrator
	syncing  atomic.Bool
	router   chi.Router
}

// New creates a Server and registers its routes.
func New(catalog Catalog, searcher *search.Searcher, orch *pipeline.Orchestrator) *Server {
	s := &Server{
		catalog:  catalog,
		searcher: searcher,
		orch:     orch,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	s.RegisterRoutes(r)
	s.router = r
	return s
}

// RegisterRoutes mounts the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/semantic", s.handleSemantic)
		r.Get("/stats", s.handleStats)
		r.Get("/subjects", s.handleSubjects)
		r.Get("/books", s.handleListBooks)
		r.Get("/books/{key}", s.handleBook)
		r.Post("/sync", s.handleSync)
	})
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
