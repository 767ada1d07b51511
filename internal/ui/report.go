package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/alfredjeanlab/schedview/internal/analysis"
)

// RenderSummary writes the local order statistics.
func RenderSummary(w io.Writer, s analysis.Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s total, %s assigned, %s unassigned",
		RenderBold("Orders:"),
		humanize.Comma(int64(s.Total)),
		humanize.Comma(int64(s.Assigned)),
		humanize.Comma(int64(s.Unassigned)))
	if s.Overtime > 0 {
		fmt.Fprintf(&b, ", %s", RenderWarn(humanize.Comma(int64(s.Overtime))+" overtime"))
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "%s %s min total, %s min average\n",
		RenderBold("Work:"),
		humanize.CommafWithDigits(s.TotalWorkMinutes, 1),
		humanize.Comma(int64(s.AverageWorkMinutes)))
	writeCounts(&b, "Per employee:", s.PerEmployee)
	writeCounts(&b, "Per line:", s.PerLine)
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCounts(b *strings.Builder, title string, counts []analysis.Count) {
	if len(counts) == 0 {
		return
	}
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s %s", c.Name, humanize.Comma(int64(c.Count)))
	}
	fmt.Fprintf(b, "%s %s\n", RenderBold(title), strings.Join(parts, ", "))
}

// RenderReport writes the statistics panel: summary, score and either the
// constraint breakdown or the advisory that replaced it.
func RenderReport(w io.Writer, r *analysis.Report) error {
	if r == nil {
		_, err := fmt.Fprintln(w, RenderMuted("(no analysis)"))
		return err
	}
	if err := RenderSummary(w, r.Summary); err != nil {
		return err
	}

	var b strings.Builder
	if r.Score != "" {
		fmt.Fprintf(&b, "%s %s", RenderBold("Score:"), r.Score)
		if !r.Initialized {
			b.WriteString(RenderMuted(" (not initialized)"))
		}
		b.WriteByte('\n')
	}
	if r.Advisory != "" {
		b.WriteString(RenderWarn(r.Advisory))
		b.WriteByte('\n')
	}
	for _, c := range r.Constraints {
		fmt.Fprintf(&b, "  %s %s score %s, %s\n",
			RenderAccent(c.Name),
			RenderMuted("("+c.Weight+")"),
			c.Score,
			humanize.Comma(int64(c.MatchCount))+" "+plural(c.MatchCount, "match", "matches"))
		for _, m := range c.Shown {
			fmt.Fprintf(&b, "      %s  %s\n", RenderMuted(m.Score), m.Justification)
		}
		if c.Remaining > 0 {
			fmt.Fprintf(&b, "      %s\n", RenderMuted(fmt.Sprintf("... and %s more", humanize.Comma(int64(c.Remaining)))))
		}
	}
	if !r.GeneratedAt.IsZero() {
		b.WriteString(RenderMuted("analyzed " + humanize.Time(r.GeneratedAt)))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
