package model

import (
	"encoding/json"
	"time"
)

// RenderRecord is one committed render as kept in the render journal.
type RenderRecord struct {
	ID           int64           `json:"id"`
	SessionID    string          `json:"session_id"`
	JobID        string          `json:"job_id"`
	Digest       string          `json:"digest"`
	Reason       string          `json:"reason"`
	Score        string          `json:"score,omitempty"`
	SolverStatus string          `json:"solver_status,omitempty"`
	ViewMode     string          `json:"view_mode"`
	Zoom         float64         `json:"zoom"`
	Rows         int             `json:"rows"`
	Bars         int             `json:"bars"`
	Omitted      int             `json:"omitted"`
	Unplaced     int             `json:"unplaced"`
	Summary      json.RawMessage `json:"summary,omitempty"`
	RenderedAt   time.Time       `json:"rendered_at"`
}

// RenderFilter selects journal rows. Empty fields match everything.
type RenderFilter struct {
	SessionID string
	JobID     string
	Since     *time.Time
	Limit     int
}
