package poller

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultJobListInterval is the job-list refresh period when none is
// configured.
const DefaultJobListInterval = 5 * time.Second

// Lister lists the backend's job ids.
type Lister interface {
	ListJobs(ctx context.Context) ([]string, error)
}

// JobWatcher refreshes the job list on its own timer, independent of the
// poll loop, and hands every list to a callback. Results are applied in
// completion order.
type JobWatcher struct {
	lister   Lister
	interval time.Duration
	onList   func([]string)
	logger   *slog.Logger

	mu   sync.Mutex
	last []string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewJobWatcher creates a watcher. onList may be nil.
func NewJobWatcher(l Lister, interval time.Duration, onList func([]string), logger *slog.Logger) *JobWatcher {
	if interval <= 0 {
		interval = DefaultJobListInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobWatcher{lister: l, interval: interval, onList: onList, logger: logger}
}

// Start begins periodic refresh. It refreshes once immediately, then on
// each tick.
func (w *JobWatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Stop cancels the watcher and waits for the current refresh to finish.
func (w *JobWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Jobs returns the most recent list.
func (w *JobWatcher) Jobs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.last)
}

// Refresh lists jobs once. A failed listing counts as an empty list.
func (w *JobWatcher) Refresh(ctx context.Context) []string {
	ids, err := w.lister.ListJobs(ctx)
	if err != nil {
		w.logger.Warn("job list failed", "err", err)
		ids = nil
	}
	if ids == nil {
		ids = []string{}
	}
	w.mu.Lock()
	changed := !slices.Equal(w.last, ids)
	w.last = ids
	w.mu.Unlock()
	if changed {
		w.logger.Debug("job list updated", "jobs", len(ids))
	}
	if w.onList != nil {
		w.onList(slices.Clone(ids))
	}
	return ids
}

func (w *JobWatcher) run(ctx context.Context) {
	w.Refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Refresh(ctx)
		}
	}
}
