package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var solveCmd = &cobra.Command{
	Use:     "solve",
	Short:   "Start solving a new schedule and print its job ID",
	GroupID: "jobs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := backend.Solve(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"job_id": id})
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:     "stop <job>",
	Short:   "Stop solving a job",
	GroupID: "jobs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := backend.StopJob(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stopped %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List the backend's jobs",
	GroupID: "jobs",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := backend.ListJobs(context.Background())
		if err != nil {
			return err
		}
		if jobs == nil {
			jobs = []string{}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), jobs)
		}
		printJobs(cmd.OutOrStdout(), jobs)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status <job>",
	Short:   "Show a job's solver status and score",
	GroupID: "jobs",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := backend.GetStatus(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"job_id":        args[0],
				"solver_status": snap.SolverStatus.String(),
				"score":         snap.Score.String(),
			})
		}
		printStatus(cmd.OutOrStdout(), args[0], snap)
		return nil
	},
}
