package designd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/logger"
)

// maxRequestBytes bounds a run submission: site and parameters YAML.
const maxRequestBytes = 8 << 20

type HTTPServer struct {
	mux      *http.ServeMux
	store    store.Store
	Executor *Executor
}

func NewHTTPServer(st store.Store, executor *Executor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    st,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id}, /v1/runs/{id}:stop,
// /v1/runs/{id}/towers and /v1/runs/{id}/groups.
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	route := func(suffix, method string, h func(http.ResponseWriter, *http.Request, string)) bool {
		if !strings.HasSuffix(path, suffix) {
			return false
		}
		if r.Method != method {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return true
		}
		h(w, r, strings.TrimSuffix(path, suffix))
		return true
	}

	switch {
	case route(":stop", http.MethodPost, s.handleStopRun):
	case route("/towers", http.MethodGet, s.handleRunTowers):
	case route("/groups", http.MethodGet, s.handleRunGroups):
	case r.Method == http.MethodGet:
		s.handleGetRun(w, r, path)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	run, err := s.Executor.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrRunExists):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("run created (HTTP)", "run_id", run.ID, "mode", run.Mode, "kind", run.Kind)
	s.writeJSON(w, http.StatusCreated, map[string]any{"run": run})
}

// handleListRuns handles GET /v1/runs with pagination and status filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{Limit: 50, Status: store.Status(strings.ToLower(q.Get("status")))}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		f.Limit = min(v, 1000)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v >= 0 {
		f.Offset = v
	}

	runs, err := s.store.List(r.Context(), f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  f.Limit,
			"offset": f.Offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.store.Get(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, r *http.Request, runID string) {
	run, err := s.Executor.Stop(r.Context(), runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRunTerminal):
			s.writeError(w, http.StatusConflict, err.Error())
		default:
			s.writeStoreError(w, err)
		}
		return
	}

	logger.Info("run cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// handleRunTowers handles GET /v1/runs/{id}/towers
func (s *HTTPServer) handleRunTowers(w http.ResponseWriter, r *http.Request, runID string) {
	towers, err := s.store.Towers(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "towers": towers})
}

// handleRunGroups handles GET /v1/runs/{id}/groups
func (s *HTTPServer) handleRunGroups(w http.ResponseWriter, r *http.Request, runID string) {
	picks, err := s.store.Picks(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run_id": runID, "groups": picks})
}

// handleMetrics handles GET /v1/metrics
func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.Executor.Metrics().Summary())
}

// Helper functions

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

func (s *HTTPServer) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}
