package model

import "encoding/json"

// ScoreAnalysis is the backend's constraint breakdown for a snapshot.
type ScoreAnalysis struct {
	Score       FlexString           `json:"score"`
	Initialized bool                 `json:"initialized"`
	Constraints []ConstraintAnalysis `json:"constraints,omitempty"`
}

// ConstraintAnalysis is one constraint's contribution to the score.
type ConstraintAnalysis struct {
	Name       string          `json:"name"`
	Weight     FlexString      `json:"weight,omitempty"`
	Score      FlexString      `json:"score,omitempty"`
	MatchCount *int            `json:"matchCount,omitempty"`
	Matches    []MatchAnalysis `json:"matches,omitempty"`
}

// MatchAnalysis is a single constraint match. Justification is free-form.
type MatchAnalysis struct {
	Score         FlexString      `json:"score,omitempty"`
	Justification json.RawMessage `json:"justification,omitempty"`
}

// Count returns the explicit match count when present, else the length of
// the match list.
func (c *ConstraintAnalysis) Count() int {
	if c.MatchCount != nil {
		return *c.MatchCount
	}
	return len(c.Matches)
}
