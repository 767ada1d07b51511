package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schedview/internal/events"
	"github.com/alfredjeanlab/schedview/internal/poller"
	"github.com/alfredjeanlab/schedview/internal/session"
	"github.com/alfredjeanlab/schedview/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch [job]",
	Short:   "Follow a job live, redrawing when the schedule settles",
	GroupID: "view",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := viewOptions(cmd)
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("interval")
		refreshStr, _ := cmd.Flags().GetString("refresh")
		stability, _ := cmd.Flags().GetInt("stability")
		solve, _ := cmd.Flags().GetBool("solve")
		exitIdle, _ := cmd.Flags().GetBool("exit-when-idle")
		showReport, _ := cmd.Flags().GetBool("report")

		refresh, err := poller.ParseRefreshMode(refreshStr)
		if err != nil {
			return err
		}
		if stability < 1 {
			return fmt.Errorf("--stability must be at least 1")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		scr := &screen{
			w:      cmd.OutOrStdout(),
			opts:   ganttOptions(cmd),
			clear:  ui.IsTerminal(),
			report: showReport,
			idle:   make(chan struct{}),
		}
		sess := session.New(session.Config{
			Backend:      backend,
			Publisher:    scr,
			Logger:       newLogger(),
			Location:     opts.Location,
			Stability:    stability,
			ViewMode:     opts.ViewMode,
			Zoom:         opts.Zoom,
			PollInterval: interval,
			RefreshMode:  refresh,
		})
		defer sess.Close()
		scr.sess = sess
		sess.OnRender(func(session.Render) { scr.draw() })

		switch {
		case solve:
			id, err := sess.Solve(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "started job %s\n", id)
		case len(args) == 1:
			if err := sess.Select(ctx, args[0]); err != nil {
				return err
			}
		default:
			jobs := sess.RefreshJobs(ctx)
			if len(jobs) == 0 {
				return fmt.Errorf("no jobs; pass a job ID, run 'sv solve', or use --solve")
			}
			if err := sess.Select(ctx, jobs[len(jobs)-1]); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
		case <-scr.idle:
			if !exitIdle {
				<-ctx.Done()
			}
		}
		return nil
	},
}

// screen redraws the terminal from the session's latest frame and report.
// It receives the session's events in place of a bus publisher.
type screen struct {
	w      io.Writer
	sess   *session.Session
	opts   ui.GanttOptions
	clear  bool
	report bool

	mu       sync.Mutex
	idleOnce sync.Once
	idle     chan struct{}
}

func (s *screen) Publish(_ context.Context, topic string, _ any) error {
	switch topic {
	case events.TopicAnalysisUpdated:
		if s.report {
			s.draw()
		}
	case events.TopicPollStopped:
		s.draw()
		s.idleOnce.Do(func() { close(s.idle) })
	}
	return nil
}

func (s *screen) Close() error { return nil }

func (s *screen) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.sess.State()
	_, frame, report := s.sess.Latest()
	if s.clear {
		io.WriteString(s.w, ui.ClearScreen)
	}
	printHeader(s.w, st)
	fmt.Fprintln(s.w)
	_ = ui.RenderGantt(s.w, frame, s.opts)
	if s.report && report != nil {
		fmt.Fprintln(s.w)
		_ = ui.RenderReport(s.w, report)
	}
}

func init() {
	addViewFlags(watchCmd)
	watchCmd.Flags().Duration("interval", poller.DefaultInterval, "poll interval")
	watchCmd.Flags().String("refresh", string(poller.RefreshOnlyWhenSolving), "refresh mode: always or onlyWhenSolving")
	watchCmd.Flags().Int("stability", 2, "identical polls required before a changed schedule is drawn")
	watchCmd.Flags().Bool("solve", false, "start a new job and watch it")
	watchCmd.Flags().Bool("exit-when-idle", false, "exit once polling stops")
	watchCmd.Flags().Bool("report", true, "draw the statistics panel below the chart")
}
