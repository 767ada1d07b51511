package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schedview/internal/analysis"
	"github.com/alfredjeanlab/schedview/internal/export"
	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/ui"
)

// addViewFlags registers the layout flags shared by show, watch and export.
func addViewFlags(cmd *cobra.Command) {
	cmd.Flags().String("view", string(layout.ViewLine), "row dimension: line or employee")
	cmd.Flags().Float64("zoom", layout.DefaultZoom, "zoom factor (0.25 to 4)")
	cmd.Flags().String("tz", "", "time zone for naive date-times (default local)")
	cmd.Flags().Int("width", 0, "render width in columns (default terminal width)")
	cmd.Flags().Bool("legend", false, "print the color legend")
}

func viewOptions(cmd *cobra.Command) (layout.Options, error) {
	viewStr, _ := cmd.Flags().GetString("view")
	zoom, _ := cmd.Flags().GetFloat64("zoom")
	tz, _ := cmd.Flags().GetString("tz")

	mode, err := layout.ParseViewMode(viewStr)
	if err != nil {
		return layout.Options{}, err
	}
	loc := time.Local
	if tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return layout.Options{}, fmt.Errorf("invalid --tz: %w", err)
		}
	}
	return layout.Options{ViewMode: mode, Zoom: layout.ClampZoom(zoom), Location: loc}, nil
}

func ganttOptions(cmd *cobra.Command) ui.GanttOptions {
	width, _ := cmd.Flags().GetInt("width")
	legend, _ := cmd.Flags().GetBool("legend")
	return ui.GanttOptions{Width: width, Legend: legend}
}

var showCmd = &cobra.Command{
	Use:     "show <job>",
	Aliases: []string{"render"},
	Short:   "Render a job's schedule once",
	GroupID: "view",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := viewOptions(cmd)
		if err != nil {
			return err
		}
		snap, err := backend.GetSchedule(context.Background(), args[0])
		if err != nil {
			return err
		}
		frame := layout.Build(snap, opts)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), frame)
		}
		printStatus(cmd.OutOrStdout(), args[0], snap)
		fmt.Fprintln(cmd.OutOrStdout())
		return ui.RenderGantt(cmd.OutOrStdout(), frame, ganttOptions(cmd))
	},
}

var analyzeCmd = &cobra.Command{
	Use:     "analyze <job>",
	Short:   "Show order statistics and the backend's score analysis",
	GroupID: "view",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		snap, err := backend.GetSchedule(ctx, args[0])
		if err != nil {
			return err
		}
		local, _ := cmd.Flags().GetBool("local")
		report := analyze(ctx, snap, local)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), report)
		}
		return ui.RenderReport(cmd.OutOrStdout(), report)
	},
}

func analyze(ctx context.Context, snap *model.Snapshot, local bool) *analysis.Report {
	agg := &analysis.Aggregator{Analyzer: backend}
	if local {
		return agg.Local(snap)
	}
	return agg.Analyze(ctx, snap)
}

var exportCmd = &cobra.Command{
	Use:     "export <job>",
	Short:   "Write a job's frame and analysis as JSONL",
	GroupID: "view",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := viewOptions(cmd)
		if err != nil {
			return err
		}
		ctx := context.Background()
		snap, err := backend.GetSchedule(ctx, args[0])
		if err != nil {
			return err
		}
		local, _ := cmd.Flags().GetBool("local")
		frame := layout.Build(snap, opts)
		report := analyze(ctx, snap, local)

		out, _ := cmd.Flags().GetString("output")
		if out == "" || out == "-" {
			return export.WriteJSONL(cmd.OutOrStdout(), args[0], frame, report)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := export.WriteJSONL(f, args[0], frame, report); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
		return nil
	},
}

func init() {
	addViewFlags(showCmd)
	addViewFlags(exportCmd)
	analyzeCmd.Flags().Bool("local", false, "skip the backend's score analysis")
	exportCmd.Flags().Bool("local", false, "skip the backend's score analysis")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}
