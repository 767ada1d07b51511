package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/session"
	"github.com/alfredjeanlab/schedview/internal/ui"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printJobs(w io.Writer, jobs []string) {
	if len(jobs) == 0 {
		fmt.Fprintln(w, "no jobs")
		return
	}
	for _, id := range jobs {
		fmt.Fprintln(w, id)
	}
	fmt.Fprintf(w, "\n%s %s\n", humanize.Comma(int64(len(jobs))), plural(len(jobs), "job", "jobs"))
}

func printStatus(w io.Writer, jobID string, snap *model.Snapshot) {
	status := snap.SolverStatus.String()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Job:\t%s\n", jobID)
	fmt.Fprintf(tw, "Status:\t%s\n", ui.RenderStatus(status, model.IsActive(status)))
	if score := snap.Score.String(); score != "" {
		fmt.Fprintf(tw, "Score:\t%s\n", score)
	}
	tw.Flush()
}

// printHeader writes the one-line banner above a rendered frame.
func printHeader(w io.Writer, st session.State) {
	status := ui.RenderStatus(st.SolverStatus, st.Active)
	line := fmt.Sprintf("%s  %s", ui.RenderBold(st.JobID), status)
	if st.Score != "" {
		line += "  " + st.Score
	}
	line += ui.RenderMuted(fmt.Sprintf("  view %s  zoom %.2f", st.ViewMode, st.Zoom))
	if st.RenderedAt != nil {
		line += ui.RenderMuted("  rendered " + humanize.Time(*st.RenderedAt))
	}
	if !st.Polling {
		line += "  " + ui.RenderWarn("(not polling)")
	}
	fmt.Fprintln(w, line)
}

func printRenders(w io.Writer, renders []*model.RenderRecord) {
	if len(renders) == 0 {
		fmt.Fprintln(w, "no renders recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tJOB\tREASON\tSTATUS\tSCORE\tBARS\tDIGEST")
	for _, r := range renders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.RenderedAt),
			r.JobID,
			r.Reason,
			r.SolverStatus,
			r.Score,
			humanize.Comma(int64(r.Bars)),
			shortDigest(r.Digest),
		)
	}
	tw.Flush()
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
