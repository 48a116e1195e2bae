// Package server exposes the read side over HTTP: the rendered
// dashboard plus a small JSON API. It holds no write path; ingestion
// happens in the CLI and scheduler.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/xiaolong-y/meridian/internal/store"
	"github.com/xiaolong-y/meridian/pkg/render"
)

// Server provides the read-only HTTP API.
type Server struct {
	store store.Store
	gen   *render.Generator
	port  int
	log   zerolog.Logger
}

// New creates a new HTTP server.
func New(s store.Store, gen *render.Generator, port int, log zerolog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, gen: gen, port: port, log: log}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/metrics", s.handleMetrics)
	mux.HandleFunc("/api/v1/observations", s.handleObservations)
	mux.HandleFunc("/api/v1/stories", s.handleStories)

	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info().Str("addr", addr).Msg("http server listening")
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.gen.Render(r.Context(), w); err != nil {
		s.log.Error().Err(err).Msg("render dashboard")
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	snaps, err := s.store.ListMetricSnapshots(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  snaps,
		"count": len(snaps),
	})
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	metricID := r.URL.Query().Get("metric")
	if metricID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "metric parameter required"})
		return
	}

	obs, err := s.store.ListRecentObservations(r.Context(), metricID, queryLimit(r, 120))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  obs,
		"count": len(obs),
	})
}

func (s *Server) handleStories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	feedID := r.URL.Query().Get("feed")
	if feedID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "feed parameter required"})
		return
	}

	stories, err := s.store.ListStoriesByFeed(r.Context(), feedID, queryLimit(r, 20))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  stories,
		"count": len(stories),
	})
}

// maxQueryLimit caps client-supplied limits so one request cannot
// dump a whole table.
const maxQueryLimit = 500

func queryLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > maxQueryLimit {
				return maxQueryLimit
			}
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
