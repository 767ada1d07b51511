package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/schedview/internal/client"
	"github.com/alfredjeanlab/schedview/internal/fingerprint"
	"github.com/alfredjeanlab/schedview/internal/model"
)

const (
	// MaxShownMatches caps the matches listed per constraint.
	MaxShownMatches = 10
	// MaxJustificationLen caps a displayed justification, in runes.
	MaxJustificationLen = 200
)

// Analyzer is the backend's score-analysis call. *client.HTTPClient
// satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, snap *model.Snapshot) (*model.ScoreAnalysis, error)
}

// Report is the presentation model of the statistics panel.
type Report struct {
	// Digest identifies the snapshot the report was computed for.
	Digest      string           `json:"digest"`
	GeneratedAt time.Time        `json:"generated_at"`
	Summary     Summary          `json:"summary"`
	Remote      bool             `json:"remote"`
	Score       string           `json:"score,omitempty"`
	Initialized bool             `json:"initialized"`
	Constraints []ConstraintView `json:"constraints"`
	// Advisory replaces the constraint breakdown when the backend could not
	// provide one.
	Advisory string `json:"advisory,omitempty"`
}

// ConstraintView is one constraint prepared for display. Shown holds at most
// MaxShownMatches entries; Matches keeps the full list.
type ConstraintView struct {
	Name       string                `json:"name"`
	Weight     string                `json:"weight"`
	Score      string                `json:"score"`
	MatchCount int                   `json:"match_count"`
	Shown      []MatchLine           `json:"shown"`
	Remaining  int                   `json:"remaining"`
	Matches    []model.MatchAnalysis `json:"matches,omitempty"`
}

// MatchLine is one displayed match.
type MatchLine struct {
	Score         string `json:"score"`
	Justification string `json:"justification"`
}

// Aggregator combines local statistics with the remote breakdown.
type Aggregator struct {
	Analyzer Analyzer
	// Location interprets naive date-times; nil means time.Local.
	Location *time.Location
}

// Local returns the report without contacting the backend.
func (a *Aggregator) Local(snap *model.Snapshot) *Report {
	r := &Report{
		Digest:      fingerprint.Of(snap).Digest(),
		GeneratedAt: time.Now().UTC(),
		Constraints: []ConstraintView{},
	}
	var orders []model.Order
	if snap != nil {
		orders = snap.Orders
	}
	r.Summary = Summarize(orders, a.Location)
	return r
}

// Analyze returns the local report merged with the backend's score
// analysis. A backend failure is reported through Advisory; the local
// summary is always present.
func (a *Aggregator) Analyze(ctx context.Context, snap *model.Snapshot) *Report {
	r := a.Local(snap)
	if snap == nil || a.Analyzer == nil {
		return r
	}
	sa, err := a.Analyzer.Analyze(ctx, snap)
	if err != nil {
		r.Advisory = advisory(err)
		return r
	}
	Merge(r, sa)
	return r
}

// Merge copies the backend's analysis into r.
func Merge(r *Report, sa *model.ScoreAnalysis) {
	if sa == nil {
		return
	}
	r.Remote = true
	r.Advisory = ""
	r.Score = sa.Score.String()
	r.Initialized = sa.Initialized
	r.Constraints = make([]ConstraintView, 0, len(sa.Constraints))
	for i := range sa.Constraints {
		r.Constraints = append(r.Constraints, viewOf(&sa.Constraints[i]))
	}
}

func viewOf(c *model.ConstraintAnalysis) ConstraintView {
	v := ConstraintView{
		Name:       c.Name,
		Weight:     c.Weight.String(),
		Score:      c.Score.String(),
		MatchCount: c.Count(),
		Shown:      []MatchLine{},
		Matches:    c.Matches,
	}
	for i, m := range c.Matches {
		if i == MaxShownMatches {
			v.Remaining = len(c.Matches) - MaxShownMatches
			break
		}
		v.Shown = append(v.Shown, MatchLine{
			Score:         m.Score.String(),
			Justification: Truncate(JustificationText(m.Justification), MaxJustificationLen),
		})
	}
	return v
}

func advisory(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("Score analysis unavailable: %d", apiErr.StatusCode)
	}
	return fmt.Sprintf("Analyze call failed: %v", err)
}

// JustificationText renders a justification as text: JSON strings are
// unquoted, anything else is compact JSON, and null is empty.
func JustificationText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Truncate shortens s to n runes followed by "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
