package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/schedview/internal/analysis"
)

func TestRenderReport(t *testing.T) {
	withoutColor(t)
	r := &analysis.Report{
		GeneratedAt: time.Now().Add(-3 * time.Minute),
		Summary: analysis.Summary{
			Total:              1200,
			Assigned:           1100,
			Unassigned:         100,
			TotalWorkMinutes:   54321.5,
			AverageWorkMinutes: 45,
			PerEmployee:        []analysis.Count{{Name: "Ann", Count: 2}},
			PerLine:            []analysis.Count{{Name: "Line 1", Count: 3}},
			Overtime:           4,
		},
		Remote:      true,
		Score:       "0hard/-12soft",
		Initialized: true,
		Constraints: []analysis.ConstraintView{{
			Name:       "Minimize overtime",
			Weight:     "0hard/1soft",
			Score:      "0hard/-12soft",
			MatchCount: 12,
			Shown:      []analysis.MatchLine{{Score: "0hard/-1soft", Justification: "order 7"}},
			Remaining:  11,
		}},
	}

	var buf bytes.Buffer
	if err := RenderReport(&buf, r); err != nil {
		t.Fatalf("RenderReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Orders: 1,200 total, 1,100 assigned, 100 unassigned, 4 overtime",
		"54,321.5 min total, 45 min average",
		"Per employee: Ann 2",
		"Per line: Line 1 3",
		"Score: 0hard/-12soft\n",
		"Minimize overtime (0hard/1soft) score 0hard/-12soft, 12 matches",
		"0hard/-1soft  order 7",
		"... and 11 more",
		"analyzed 3 minutes ago",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReport_Advisory(t *testing.T) {
	withoutColor(t)
	r := &analysis.Report{
		Summary:  analysis.Summary{Total: 1, Unassigned: 1},
		Advisory: "Score analysis unavailable: 500",
	}
	var buf bytes.Buffer
	if err := RenderReport(&buf, r); err != nil {
		t.Fatalf("RenderReport: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Score analysis unavailable: 500") {
		t.Errorf("advisory missing:\n%s", out)
	}
	if strings.Contains(out, "overtime") || strings.Contains(out, "analyzed") || strings.Contains(out, "Score:") {
		t.Errorf("unexpected sections:\n%s", out)
	}
}

func TestRenderReport_Nil(t *testing.T) {
	withoutColor(t)
	var buf bytes.Buffer
	if err := RenderReport(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "(no analysis)\n" {
		t.Errorf("got %q", buf.String())
	}
}
