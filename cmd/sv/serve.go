package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schedview/internal/config"
	"github.com/alfredjeanlab/schedview/internal/events"
	"github.com/alfredjeanlab/schedview/internal/export"
	"github.com/alfredjeanlab/schedview/internal/server"
	"github.com/alfredjeanlab/schedview/internal/session"
	"github.com/alfredjeanlab/schedview/internal/store"
	"github.com/alfredjeanlab/schedview/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run a viewing session behind the frame HTTP API",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		// Load configuration. The backend comes from the root flags, which
		// already fall back to the environment and the active remote.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Event fan-out: the SSE hub always, NATS when configured.
		hub := server.NewHub()
		var publisher events.Publisher = hub
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			publisher = events.NewMulti(hub, pub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("NATS events disabled (SCHEDVIEW_NATS_URL not set)")
		}

		// Render journal.
		var journal store.Store
		if cfg.DatabaseURL != "" {
			pg, err := postgres.New(cfg.DatabaseURL)
			if err != nil {
				publisher.Close()
				return err
			}
			journal = pg
			if retain, _ := cmd.Flags().GetDuration("retain"); retain > 0 {
				n, err := pg.PruneRenders(ctx, time.Now().Add(-retain))
				if err != nil {
					logger.Error("pruning render journal failed", "err", err)
				} else {
					logger.Info("render journal pruned", "removed", n, "retain", retain)
				}
			}
			logger.Info("render journal enabled")
		}

		sess := session.New(session.Config{
			Backend:         backend,
			Publisher:       publisher,
			Journal:         journal,
			Logger:          logger,
			Location:        cfg.Location,
			Stability:       cfg.Stability,
			ViewMode:        cfg.ViewMode,
			Zoom:            cfg.Zoom,
			PollInterval:    cfg.PollInterval,
			RefreshMode:     cfg.RefreshMode,
			JobListInterval: cfg.JobListInterval,
		})
		sess.WatchJobs(ctx)

		if job, _ := cmd.Flags().GetString("job"); job != "" {
			if err := sess.Select(ctx, job); err != nil {
				logger.Error("selecting job failed", "job", job, "err", err)
			}
		} else if solve, _ := cmd.Flags().GetBool("solve"); solve {
			if _, err := sess.Solve(ctx); err != nil {
				logger.Error("starting solve failed", "err", err)
			}
		}

		// Start HTTP server.
		srv := server.New(ctx, sess, hub, journal, logger)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr, "backend", backend.BaseURL())
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the export scheduler if any destinations are configured.
		var scheduler *export.Scheduler
		if cfg.ExportEnabled() {
			var dests []export.Destination

			if cfg.ExportS3Bucket != "" {
				s3Dest, err := export.NewS3Destination(ctx,
					cfg.ExportS3Bucket,
					cfg.ExportS3Key,
					cfg.ExportS3Region,
					cfg.ExportS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 export destination", "err", err)
				} else {
					dests = append(dests, s3Dest)
					logger.Info("export S3 destination enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
				}
			}

			if cfg.ExportGitRepo != "" {
				dests = append(dests, export.NewGitDestination(cfg.ExportGitRepo, cfg.ExportGitFile, cfg.ExportGitBranch))
				logger.Info("export git destination enabled", "repo", cfg.ExportGitRepo, "file", cfg.ExportGitFile)
			}

			if len(dests) > 0 {
				scheduler = export.NewScheduler(sess, dests, cfg.ExportInterval, logger)
				scheduler.Start()
				logger.Info("export scheduler started", "interval", cfg.ExportInterval)
			}
		}

		logger.Info("schedview server started", "session", sess.ID(), "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		cancel()
		sess.Close()
		logger.Info("session closed")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if journal != nil {
			if err := journal.Close(); err != nil {
				logger.Error("error closing journal", "err", err)
			}
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "HTTP listen address (default $SCHEDVIEW_HTTP_ADDR or :8090)")
	serveCmd.Flags().String("job", "", "select this job at startup")
	serveCmd.Flags().Bool("solve", false, "start a new job at startup")
	serveCmd.Flags().Duration("retain", 0, "drop journal entries older than this at startup (0 keeps all)")
}
