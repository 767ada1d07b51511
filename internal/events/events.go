package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/schedview/internal/analysis"
	"github.com/alfredjeanlab/schedview/internal/layout"
)

// Event topic constants
const (
	TopicFrameRendered   = "schedview.frame.rendered"
	TopicAnalysisUpdated = "schedview.analysis.updated"
	TopicPollStopped     = "schedview.poll.stopped"
	TopicJobsUpdated     = "schedview.jobs.updated"

	// TopicAll matches every schedview topic.
	TopicAll = "schedview.>"
)

// Event types

// FrameRendered is emitted after a committed render. Frame is omitted by
// publishers that only need the summary.
type FrameRendered struct {
	SessionID    string        `json:"session_id"`
	JobID        string        `json:"job_id"`
	Digest       string        `json:"digest"`
	Reason       string        `json:"reason"`
	Score        string        `json:"score,omitempty"`
	SolverStatus string        `json:"solver_status,omitempty"`
	ViewMode     string        `json:"view_mode"`
	Zoom         float64       `json:"zoom"`
	Rows         int           `json:"rows"`
	Bars         int           `json:"bars"`
	Omitted      int           `json:"omitted"`
	Unplaced     int           `json:"unplaced"`
	RenderedAt   time.Time     `json:"rendered_at"`
	Frame        *layout.Frame `json:"frame,omitempty"`
}

// AnalysisUpdated is emitted when a report is replaced. Digest names the
// snapshot the report describes, which may be older than the current frame.
type AnalysisUpdated struct {
	SessionID string           `json:"session_id"`
	JobID     string           `json:"job_id"`
	Digest    string           `json:"digest"`
	Stale     bool             `json:"stale"`
	Report    *analysis.Report `json:"report"`
}

// PollStopped is emitted when the poll loop goes idle on its own.
type PollStopped struct {
	SessionID string `json:"session_id"`
	JobID     string `json:"job_id"`
	Reason    string `json:"reason"`
}

// JobsUpdated carries a refreshed job list.
type JobsUpdated struct {
	SessionID string   `json:"session_id"`
	Jobs      []string `json:"jobs"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
