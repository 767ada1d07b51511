package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alfredjeanlab/schedview/internal/client"
	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/poller"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests other than GET and HEAD must include
// a valid Authorization: Bearer <token> header.
func (s *Server) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/state", s.handleGetState)
	mux.HandleFunc("GET /v1/frame", s.handleGetFrame)
	mux.HandleFunc("GET /v1/analysis", s.handleGetAnalysis)
	mux.HandleFunc("GET /v1/jobs", s.handleListJobs)
	mux.HandleFunc("POST /v1/jobs", s.handleSolve)
	mux.HandleFunc("PUT /v1/jobs/current", s.handleSelectJob)
	mux.HandleFunc("DELETE /v1/jobs/current", s.handleStopJob)
	mux.HandleFunc("PUT /v1/view", s.handleSetView)
	mux.HandleFunc("POST /v1/zoom/in", s.handleZoomIn)
	mux.HandleFunc("POST /v1/zoom/out", s.handleZoomOut)
	mux.HandleFunc("GET /v1/history", s.handleHistory)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	return RecoveryMiddleware(s.logger, LoggingMiddleware(s.logger, AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetState handles GET /v1/state.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.viewer.State())
}

// handleGetFrame handles GET /v1/frame.
func (s *Server) handleGetFrame(w http.ResponseWriter, _ *http.Request) {
	f := s.viewer.Frame()
	if f == nil {
		writeError(w, http.StatusNotFound, "no frame rendered yet")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleGetAnalysis handles GET /v1/analysis.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, _ *http.Request) {
	r := s.viewer.Report()
	if r == nil {
		writeError(w, http.StatusNotFound, "no analysis yet")
		return
	}
	writeJSON(w, http.StatusOK, r)
}

// handleListJobs handles GET /v1/jobs. ?refresh=true lists from the backend
// instead of returning the last watched list.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var jobs []string
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		jobs = s.viewer.RefreshJobs(r.Context())
	} else {
		jobs = s.viewer.Jobs()
	}
	if jobs == nil {
		jobs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// handleSolve handles POST /v1/jobs.
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	id, err := s.viewer.Solve(s.detach(r))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": id})
}

type selectJobRequest struct {
	JobID string `json:"job_id"`
}

// handleSelectJob handles PUT /v1/jobs/current.
func (s *Server) handleSelectJob(w http.ResponseWriter, r *http.Request) {
	var req selectJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.JobID == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}
	if err := s.viewer.Select(s.detach(r), req.JobID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.State())
}

// handleStopJob handles DELETE /v1/jobs/current.
func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	if s.viewer.State().JobID == "" {
		writeError(w, http.StatusConflict, "no job selected")
		return
	}
	if err := s.viewer.StopSolving(r.Context()); err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewer.State())
}

type setViewRequest struct {
	ViewMode       *string  `json:"view_mode"`
	Zoom           *float64 `json:"zoom"`
	RefreshMode    *string  `json:"refresh_mode"`
	PollIntervalMS *int64   `json:"poll_interval_ms"`
}

// handleSetView handles PUT /v1/view. Every field is optional; all fields
// are validated before any is applied.
func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	var req setViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var (
		mode    layout.ViewMode
		refresh poller.RefreshMode
		err     error
	)
	if req.ViewMode != nil {
		if mode, err = layout.ParseViewMode(*req.ViewMode); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.RefreshMode != nil {
		if refresh, err = poller.ParseRefreshMode(*req.RefreshMode); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.PollIntervalMS != nil && *req.PollIntervalMS <= 0 {
		writeError(w, http.StatusBadRequest, "poll_interval_ms must be positive")
		return
	}

	ctx := s.detach(r)
	if req.ViewMode != nil {
		s.viewer.SetViewMode(mode)
	}
	if req.Zoom != nil {
		s.viewer.SetZoom(*req.Zoom)
	}
	if req.RefreshMode != nil {
		if err := s.viewer.SetRefreshMode(ctx, refresh); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if req.PollIntervalMS != nil {
		if err := s.viewer.SetPollInterval(ctx, time.Duration(*req.PollIntervalMS)*time.Millisecond); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, s.viewer.State())
}

// handleZoomIn handles POST /v1/zoom/in.
func (s *Server) handleZoomIn(w http.ResponseWriter, _ *http.Request) {
	s.viewer.ZoomIn()
	writeJSON(w, http.StatusOK, s.viewer.State())
}

// handleZoomOut handles POST /v1/zoom/out.
func (s *Server) handleZoomOut(w http.ResponseWriter, _ *http.Request) {
	s.viewer.ZoomOut()
	writeJSON(w, http.StatusOK, s.viewer.State())
}

// handleHistory handles GET /v1/history?job=&session=&limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotImplemented, "render journal not configured")
		return
	}
	q := r.URL.Query()
	filter := model.RenderFilter{
		JobID:     q.Get("job"),
		SessionID: q.Get("session"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid since %q", v))
			return
		}
		filter.Since = &t
	}

	renders, err := s.journal.ListRenders(r.Context(), filter)
	if err != nil {
		s.logger.Error("list renders failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list renders")
		return
	}
	if renders == nil {
		renders = []*model.RenderRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"renders": renders})
}

// detach returns the context for work that outlives the request, such as a
// poll loop.
func (s *Server) detach(r *http.Request) context.Context {
	if s.base != nil {
		return s.base
	}
	return context.WithoutCancel(r.Context())
}

// writeBackendError maps a backend failure to a response. Backend HTTP
// errors become 502 with the backend's message.
func writeBackendError(w http.ResponseWriter, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		writeError(w, http.StatusBadGateway, apiErr.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
