// Package server exposes a session's latest frame, analysis and state over
// HTTP/JSON, plus a server-sent event stream of render events for browser
// renderers.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/schedview/internal/analysis"
	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/poller"
	"github.com/alfredjeanlab/schedview/internal/session"
	"github.com/alfredjeanlab/schedview/internal/store"
)

// Viewer is the session surface the server drives. *session.Session
// implements it.
type Viewer interface {
	State() session.State
	Frame() *layout.Frame
	Report() *analysis.Report
	View() layout.Options

	Jobs() []string
	RefreshJobs(ctx context.Context) []string
	Solve(ctx context.Context) (string, error)
	Select(ctx context.Context, jobID string) error
	StopSolving(ctx context.Context) error

	SetViewMode(m layout.ViewMode)
	SetZoom(z float64)
	ZoomIn()
	ZoomOut()
	SetRefreshMode(ctx context.Context, m poller.RefreshMode) error
	SetPollInterval(ctx context.Context, d time.Duration) error
}

var _ Viewer = (*session.Session)(nil)

// Server serves one viewer.
type Server struct {
	viewer  Viewer
	hub     *Hub
	journal store.Store
	logger  *slog.Logger

	// base is the context for work that outlives a request, such as the
	// poll loop started by selecting a job.
	base context.Context
}

// New returns a server for v. hub receives the session's events and may be
// shared with other publishers; journal is optional.
func New(ctx context.Context, v Viewer, hub *Hub, journal store.Store, logger *slog.Logger) *Server {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{viewer: v, hub: hub, journal: journal, logger: logger, base: ctx}
}

// Hub returns the event hub feeding the SSE stream.
func (s *Server) Hub() *Hub { return s.hub }
