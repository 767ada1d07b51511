// Package export periodically writes the session's latest frame and report
// as JSONL to external destinations (S3, git).
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/schedview/internal/analysis"
	"github.com/alfredjeanlab/schedview/internal/layout"
)

// Version is the JSONL format version written in the header.
const Version = "1"

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	JobID     string    `json:"job_id"`
	Digest    string    `json:"digest"`
	ViewMode  string    `json:"view_mode"`
	Zoom      float64   `json:"zoom"`
	RowCount  int       `json:"row_count"`
	BarCount  int       `json:"bar_count"`
	Omitted   int       `json:"omitted"`
	Unplaced  int       `json:"unplaced"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// timeline is the frame without its rows.
type timeline struct {
	Start       time.Time            `json:"start"`
	End         time.Time            `json:"end"`
	DaysSpan    int                  `json:"days_span"`
	PxPerDay    float64              `json:"px_per_day"`
	PxPerMinute float64              `json:"px_per_minute"`
	Width       float64              `json:"width"`
	Ticks       []layout.Tick        `json:"ticks"`
	Legend      []layout.LegendEntry `json:"legend"`
}

// WriteJSONL writes a header, the timeline, one record per row and, when
// present, the analysis report.
func WriteJSONL(w io.Writer, jobID string, f *layout.Frame, r *analysis.Report) error {
	if f == nil {
		return fmt.Errorf("no frame to export")
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	h := header{
		Version:   Version,
		Type:      "header",
		Timestamp: time.Now().UTC(),
		JobID:     jobID,
		ViewMode:  string(f.ViewMode),
		Zoom:      f.Zoom,
		RowCount:  len(f.Rows),
		BarCount:  f.BarCount(),
		Omitted:   f.Omitted,
		Unplaced:  f.Unplaced,
	}
	if r != nil {
		h.Digest = r.Digest
	}
	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	tl := timeline{
		Start:       f.Start,
		End:         f.End,
		DaysSpan:    f.DaysSpan,
		PxPerDay:    f.PxPerDay,
		PxPerMinute: f.PxPerMinute,
		Width:       f.Width,
		Ticks:       f.Ticks,
		Legend:      f.Legend,
	}
	if err := enc.Encode(record{Type: "timeline", Data: tl}); err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}

	for _, row := range f.Rows {
		if err := enc.Encode(record{Type: "row", Data: row}); err != nil {
			return fmt.Errorf("encode row %s: %w", row.Key, err)
		}
	}

	if r != nil {
		if err := enc.Encode(record{Type: "report", Data: r}); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	}
	return nil
}
