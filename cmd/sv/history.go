package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/store/postgres"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "List recorded renders from the render journal",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbURL, _ := cmd.Flags().GetString("database")
		if dbURL == "" {
			dbURL = os.Getenv("SCHEDVIEW_DATABASE_URL")
		}
		if dbURL == "" {
			return fmt.Errorf("no database; pass --database or set SCHEDVIEW_DATABASE_URL")
		}
		job, _ := cmd.Flags().GetString("job")
		sessionID, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")
		prune, _ := cmd.Flags().GetDuration("prune")

		journal, err := postgres.New(dbURL)
		if err != nil {
			return err
		}
		defer journal.Close()
		ctx := context.Background()

		if prune > 0 {
			n, err := journal.PruneRenders(ctx, time.Now().Add(-prune))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "pruned %d %s older than %s\n", n, plural(int(n), "render", "renders"), prune)
		}

		filter := model.RenderFilter{JobID: job, SessionID: sessionID, Limit: limit}
		if since > 0 {
			t := time.Now().Add(-since)
			filter.Since = &t
		}
		renders, err := journal.ListRenders(ctx, filter)
		if err != nil {
			return err
		}
		if renders == nil {
			renders = []*model.RenderRecord{}
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), renders)
		}
		printRenders(cmd.OutOrStdout(), renders)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("database", "", "Postgres URL (default $SCHEDVIEW_DATABASE_URL)")
	historyCmd.Flags().String("job", "", "only renders of this job")
	historyCmd.Flags().String("session", "", "only renders of this session")
	historyCmd.Flags().Int("limit", 20, "maximum renders to list")
	historyCmd.Flags().Duration("since", 0, "only renders newer than this")
	historyCmd.Flags().Duration("prune", 0, "first delete renders older than this")
}
