package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	ookerrors "github.com/lepinkainen/ook/internal/errors"
	"github.com/lepinkainen/ook/internal/library"
	"github.com/lepinkainen/ook/internal/pipeline"
)

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse[T any] struct {
	Query   string `json:"query"`
	Count   int    `json:"count"`
	Results []T    `json:"results"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ookerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ookerrors.ErrInvalidDimension):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.searcher.Keyword(r.Context(), q, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if results == nil {
		results = []library.LexicalResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse[library.LexicalResult]{Query: q, Count: len(results), Results: results})
}

func (s *Server) handleSemantic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.searcher.Semantic(r.Context(), q, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if results == nil {
		results = []library.VectorResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse[library.VectorResult]{Query: q, Count: len(results), Results: results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.catalog.Subjects(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sortBy := r.URL.Query().Get("sort")
	switch sortBy {
	case "", "title", "author", "year":
	default:
		writeError(w, http.StatusBadRequest, errors.New("sort must be one of title, author, year"))
		return
	}

	records, err := s.catalog.ListBooks(r.Context(), library.ListOptions{
		Limit:  limit,
		Offset: offset,
		SortBy: sortBy,
		Desc:   r.URL.Query().Get("order") == "desc",
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []library.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	rec, err := s.catalog.Record(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSync streams pipeline events as newline-delimited JSON. The run
// continues to completion if the client goes away.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	enrichLimit, err := intParam(r, "enrich_limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	embedLimit, err := intParam(r, "embed_limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !s.syncing.CompareAndSwap(false, true) {
		writeError(w, http.StatusConflict, errors.New("a sync is already running"))
		return
	}

	stream := s.orch.Stream(r.Context(), pipeline.RunOptions{EnrichLimit: enrichLimit, EmbedLimit: embedLimit})
	go func() {
		_, _ = stream.Wait()
		s.syncing.Store(false)
	}()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			slog.Info("Sync client disconnected, run continues in background")
			stream.Detach()
			return
		case ev, ok := <-stream.Events():
			if !ok {
				return
			}
			if err := enc.Encode(ev); err != nil {
				stream.Detach()
				return
			}
			_ = rc.Flush()
		}
	}
}
