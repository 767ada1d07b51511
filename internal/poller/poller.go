// Package poller runs the timer-driven activities of a viewing session: the
// schedule poll loop for the selected job and the job-list refresh.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// DefaultInterval is the poll period when none is configured.
const DefaultInterval = 2 * time.Second

// RefreshMode decides when the poll loop stops on its own.
type RefreshMode string

const (
	// RefreshAlways keeps polling until stopped.
	RefreshAlways RefreshMode = "always"
	// RefreshOnlyWhenSolving stops once the job is no longer actively
	// solving or cannot be fetched.
	RefreshOnlyWhenSolving RefreshMode = "onlyWhenSolving"
)

// ParseRefreshMode accepts "always" or "onlyWhenSolving" (case-insensitive).
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return RefreshAlways, nil
	case "onlywhensolving", "only-when-solving":
		return RefreshOnlyWhenSolving, nil
	}
	return "", fmt.Errorf("invalid refresh mode %q (want always or onlyWhenSolving)", s)
}

// State is the controller's state.
type State int

const (
	Idle State = iota
	Polling
)

func (s State) String() string {
	if s == Polling {
		return "polling"
	}
	return "idle"
}

// Fetcher fetches the current snapshot of a job.
type Fetcher interface {
	GetSchedule(ctx context.Context, jobID string) (*model.Snapshot, error)
}

// Handler receives every successfully fetched snapshot.
type Handler func(ctx context.Context, jobID string, snap *model.Snapshot)

// StopFunc is told when a loop goes idle on its own.
type StopFunc func(jobID, reason string)

// Controller polls one job at a time. Starting a new loop replaces the old
// one; a replaced loop never changes the controller's state.
type Controller struct {
	fetcher Fetcher
	handle  Handler
	logger  *slog.Logger
	onStop  StopFunc

	mu       sync.Mutex
	mode     RefreshMode
	gen      uint64
	cancel   context.CancelFunc
	state    State
	jobID    string
	interval time.Duration

	wg sync.WaitGroup
}

// New creates an idle controller.
func New(f Fetcher, h Handler, mode RefreshMode, logger *slog.Logger) *Controller {
	if mode == "" {
		mode = RefreshAlways
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{fetcher: f, handle: h, mode: mode, logger: logger}
}

// OnStop registers a callback for loops that go idle on their own.
func (c *Controller) OnStop(fn StopFunc) {
	c.mu.Lock()
	c.onStop = fn
	c.mu.Unlock()
}

// SetRefreshMode changes the stop policy. It applies from the next cycle.
func (c *Controller) SetRefreshMode(m RefreshMode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

// RefreshMode returns the current stop policy.
func (c *Controller) RefreshMode() RefreshMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns the current state, the polled job and the interval.
func (c *Controller) State() (State, string, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.jobID, c.interval
}

// Start stops any running loop, runs one cycle for jobID immediately and
// then one every interval. The loop ends when ctx is done, Stop is called,
// or the refresh policy says so.
func (c *Controller) Start(ctx context.Context, jobID string, interval time.Duration) error {
	if jobID == "" {
		return fmt.Errorf("start polling: empty job id")
	}
	if interval <= 0 {
		return fmt.Errorf("start polling: interval must be positive, got %v", interval)
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = Polling
	c.jobID = jobID
	c.interval = interval
	c.mu.Unlock()

	c.logger.Debug("poll started", "job", jobID, "interval", interval)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(loopCtx, gen, jobID, interval)
	}()
	return nil
}

// Stop ends the running loop, if any. A fetch already in flight completes
// and is still handled; no further cycles are issued.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.state = Idle
}

// Wait blocks until every loop started so far has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) run(ctx context.Context, gen uint64, jobID string, interval time.Duration) {
	if !c.cycle(ctx, gen, jobID) {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.cycle(ctx, gen, jobID) {
				return
			}
		}
	}
}

// cycle fetches and hands over one snapshot. It reports whether the loop
// should continue.
func (c *Controller) cycle(ctx context.Context, gen uint64, jobID string) bool {
	if ctx.Err() != nil {
		return false
	}
	// Stop ends the loop, not the request.
	fetchCtx := context.WithoutCancel(ctx)
	snap, err := c.fetcher.GetSchedule(fetchCtx, jobID)
	mode := c.RefreshMode()
	if err != nil {
		c.logger.Warn("poll fetch failed", "job", jobID, "err", err)
		if mode == RefreshOnlyWhenSolving {
			c.idle(gen, jobID, "fetch failed")
			return false
		}
		return true
	}
	if c.handle != nil {
		c.handle(fetchCtx, jobID, snap)
	}
	if mode == RefreshOnlyWhenSolving && !model.IsActive(snap.SolverStatus.String()) {
		c.idle(gen, jobID, "not solving")
		return false
	}
	return true
}

// idle moves to Idle unless a newer loop has started since gen.
func (c *Controller) idle(gen uint64, jobID, reason string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	fn := c.onStop
	c.mu.Unlock()

	c.logger.Info("poll stopped", "job", jobID, "reason", reason)
	if fn != nil {
		fn(jobID, reason)
	}
}
