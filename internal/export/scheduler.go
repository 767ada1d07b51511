package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/schedview/internal/analysis"
	"github.com/alfredjeanlab/schedview/internal/layout"
)

// DefaultInterval is the export period used when none is configured.
const DefaultInterval = time.Minute

// Source provides the frame to export.
type Source interface {
	Latest() (jobID string, frame *layout.Frame, report *analysis.Report)
}

// Payload is one export.
type Payload struct {
	JobID  string
	Digest string
	Data   []byte
}

func (p Payload) commitMessage() string {
	if p.Digest == "" {
		return fmt.Sprintf("schedview: update frame export for %s", p.JobID)
	}
	return fmt.Sprintf("schedview: frame %s for %s", p.Digest, p.JobID)
}

// Destination is an export target.
type Destination interface {
	Name() string
	Write(ctx context.Context, p Payload) error
}

// Scheduler exports the source's latest frame to every destination on a
// fixed interval. An export identical to the previous one is skipped.
type Scheduler struct {
	source       Source
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	lastKey string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler.
func NewScheduler(src Source, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       src,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start exports once immediately, then on every tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for a running export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.exportLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.exportLogged(ctx)
		}
	}
}

func (s *Scheduler) exportLogged(ctx context.Context) {
	if _, err := s.ExportOnce(ctx); err != nil {
		s.logger.Error("export failed", "err", err)
	}
}

// ExportOnce writes the latest frame to every destination. It reports
// whether anything was written; nothing is written before the first render
// or when the frame has not changed since the last export. Destination
// failures are logged and do not stop the others.
func (s *Scheduler) ExportOnce(ctx context.Context) (bool, error) {
	jobID, frame, report := s.source.Latest()
	if frame == nil {
		return false, nil
	}

	key := exportKey(jobID, frame, report)
	s.mu.Lock()
	unchanged := key == s.lastKey
	s.mu.Unlock()
	if unchanged {
		return false, nil
	}

	var buf bytes.Buffer
	if err := WriteJSONL(&buf, jobID, frame, report); err != nil {
		return false, err
	}
	p := Payload{JobID: jobID, Data: buf.Bytes()}
	if report != nil {
		p.Digest = report.Digest
	}

	failed := 0
	for _, dest := range s.destinations {
		if err := dest.Write(ctx, p); err != nil {
			failed++
			s.logger.Error("export destination write failed", "destination", dest.Name(), "err", err)
		}
	}
	if failed == 0 {
		s.mu.Lock()
		s.lastKey = key
		s.mu.Unlock()
	}

	s.logger.Info("export completed", "job", jobID, "destinations", len(s.destinations), "failed", failed, "bytes", len(p.Data))
	return true, nil
}

// exportKey identifies the exported content. Frames are rebuilt rather than
// mutated, so pointer identity tells view changes apart.
func exportKey(jobID string, f *layout.Frame, r *analysis.Report) string {
	key := fmt.Sprintf("%s|%p", jobID, f)
	if r != nil {
		key += fmt.Sprintf("|%p", r)
	}
	return key
}
