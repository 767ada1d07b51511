package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schedview/internal/client"
	"github.com/alfredjeanlab/schedview/internal/ui"
)

var (
	serverURL  string
	token      string
	jsonOutput bool
	noColor    bool
	debug      bool

	backend *client.HTTPClient
)

func defaultServer() string {
	if s := os.Getenv("SCHEDVIEW_BACKEND_URL"); s != "" {
		return s
	}
	if s := activeRemoteURL(); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("SCHEDVIEW_BACKEND_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:           "sv",
	Short:         "Schedule viewer for a solver backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.SetColor(!noColor && ui.ShouldUseColor())
		backend = client.NewHTTPClient(strings.TrimRight(serverURL, "/"), token)
		return nil
	},
}

// newLogger returns the stderr logger used by long-running commands.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "solver backend URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", defaultToken(), "bearer token for the backend")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: "jobs", Title: "Jobs:"},
		&cobra.Group{ID: "view", Title: "Viewing:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
