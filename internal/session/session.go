// Package session holds the state of one viewing session: the selected job,
// the change gate, the view options and the latest frame and report. It
// wires the poll loop to the render pipeline and fans committed renders out
// to observers, the event bus and the render journal.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alfredjeanlab/schedview/internal/analysis"
	"github.com/alfredjeanlab/schedview/internal/client"
	"github.com/alfredjeanlab/schedview/internal/events"
	"github.com/alfredjeanlab/schedview/internal/fingerprint"
	"github.com/alfredjeanlab/schedview/internal/gate"
	"github.com/alfredjeanlab/schedview/internal/idgen"
	"github.com/alfredjeanlab/schedview/internal/layout"
	"github.com/alfredjeanlab/schedview/internal/model"
	"github.com/alfredjeanlab/schedview/internal/poller"
	"github.com/alfredjeanlab/schedview/internal/store"
)

// ReasonView marks a re-layout caused by a view change rather than a new
// snapshot.
const ReasonView = "view"

// Config configures a Session. Only Backend is required.
type Config struct {
	Backend client.Backend
	// Analyzer defaults to Backend.
	Analyzer analysis.Analyzer
	// Publisher defaults to a no-op.
	Publisher events.Publisher
	// Journal is optional.
	Journal store.Store
	Logger  *slog.Logger
	// Location interprets naive date-times; nil means time.Local.
	Location *time.Location

	Stability       int
	ViewMode        layout.ViewMode
	Zoom            float64
	PollInterval    time.Duration
	RefreshMode     poller.RefreshMode
	JobListInterval time.Duration
}

// Render is one committed render as seen by observers.
type Render struct {
	JobID    string
	Reason   string
	Digest   string
	Snapshot *model.Snapshot
	Frame    *layout.Frame
	Report   *analysis.Report
	At       time.Time
}

// State is a point-in-time view of the session for status displays.
type State struct {
	SessionID      string             `json:"session_id"`
	JobID          string             `json:"job_id,omitempty"`
	Polling        bool               `json:"polling"`
	PollIntervalMS int64              `json:"poll_interval_ms"`
	RefreshMode    poller.RefreshMode `json:"refresh_mode"`
	ViewMode       layout.ViewMode    `json:"view_mode"`
	Zoom           float64            `json:"zoom"`
	Score          string             `json:"score,omitempty"`
	SolverStatus   string             `json:"solver_status,omitempty"`
	Active         bool               `json:"active"`
	FetchedAt      *time.Time         `json:"fetched_at,omitempty"`
	RenderedAt     *time.Time         `json:"rendered_at,omitempty"`
	Renders        int                `json:"renders"`
	Digest         string             `json:"digest,omitempty"`
	AnalysisStale  bool               `json:"analysis_stale"`
	Jobs           []string           `json:"jobs"`
}

// Session is safe for concurrent use. Renders are serialized under its
// lock; observers, events and the journal are called outside it.
type Session struct {
	id      string
	backend client.Backend
	gate    *gate.Gate
	agg     *analysis.Aggregator
	pub     events.Publisher
	journal store.Store
	logger  *slog.Logger
	poll    *poller.Controller
	watcher *poller.JobWatcher

	mu         sync.Mutex
	jobID      string
	view       layout.Options
	interval   time.Duration
	last       *model.Snapshot
	rendered   *model.Snapshot
	digest     string
	frame      *layout.Frame
	report     *analysis.Report
	jobs       []string
	fetchedAt  time.Time
	renderedAt time.Time
	renders    int
	observers  []func(Render)

	bg sync.WaitGroup
}

// New creates an idle session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	analyzer := cfg.Analyzer
	if analyzer == nil && cfg.Backend != nil {
		analyzer = cfg.Backend
	}
	stability := cfg.Stability
	if stability == 0 {
		stability = gate.RequiredStability
	}
	mode := cfg.ViewMode
	if mode == "" {
		mode = layout.ViewLine
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = poller.DefaultInterval
	}

	s := &Session{
		id:      idgen.SessionID(),
		backend: cfg.Backend,
		gate:    gate.New(stability),
		agg:     &analysis.Aggregator{Analyzer: analyzer, Location: cfg.Location},
		pub:     pub,
		journal: cfg.Journal,
		logger:  logger,
		view: layout.Options{
			ViewMode: mode,
			Zoom:     layout.ClampZoom(cfg.Zoom),
			Location: cfg.Location,
		},
		interval: interval,
		jobs:     []string{},
	}
	s.logger = logger.With("session", s.id)
	s.poll = poller.New(cfg.Backend, func(ctx context.Context, jobID string, snap *model.Snapshot) {
		s.HandleSnapshot(ctx, jobID, snap)
	}, cfg.RefreshMode, s.logger)
	s.poll.OnStop(s.pollStopped)
	s.watcher = poller.NewJobWatcher(cfg.Backend, cfg.JobListInterval, s.setJobs, s.logger)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// OnRender registers an observer called after every committed render and
// view change.
func (s *Session) OnRender(fn func(Render)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// WatchJobs starts refreshing the job list in the background.
func (s *Session) WatchJobs(ctx context.Context) {
	s.watcher.Start(ctx)
}

// Close stops every background activity and waits for it to finish.
func (s *Session) Close() {
	s.poll.Stop()
	s.watcher.Stop()
	s.poll.Wait()
	s.bg.Wait()
}

// Wait blocks until pending analysis calls have finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

// --- Jobs ---

// Solve starts a new job on the backend, selects it and starts polling.
func (s *Session) Solve(ctx context.Context) (string, error) {
	id, err := s.backend.Solve(ctx)
	if err != nil {
		return "", fmt.Errorf("starting solve: %w", err)
	}
	s.logger.Info("solve started", "job", id)
	if err := s.Select(ctx, id); err != nil {
		return id, err
	}
	return id, nil
}

// Select switches the session to jobID and starts polling it. The gate is
// reset so that the new job's first snapshot renders immediately.
func (s *Session) Select(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("select job: empty job id")
	}
	s.mu.Lock()
	changed := jobID != s.jobID
	s.jobID = jobID
	interval := s.interval
	if changed {
		s.gate.Reset()
		s.last = nil
	}
	s.mu.Unlock()
	if changed {
		s.logger.Info("job selected", "job", jobID)
	}
	return s.poll.Start(ctx, jobID, interval)
}

// StopSolving asks the backend to stop the selected job. Polling continues
// so the final state is picked up.
func (s *Session) StopSolving(ctx context.Context) error {
	jobID := s.JobID()
	if jobID == "" {
		return fmt.Errorf("stop solving: no job selected")
	}
	if err := s.backend.StopJob(ctx, jobID); err != nil {
		s.logger.Warn("stop job failed", "job", jobID, "err", err)
		return fmt.Errorf("stopping job %s: %w", jobID, err)
	}
	s.logger.Info("job stopped", "job", jobID)
	return nil
}

// StopPolling ends the poll loop. The last frame stays available.
func (s *Session) StopPolling() {
	s.poll.Stop()
}

// Refresh fetches the selected job once, outside the poll loop.
func (s *Session) Refresh(ctx context.Context) (gate.Decision, error) {
	jobID := s.JobID()
	if jobID == "" {
		return gate.Decision{}, fmt.Errorf("refresh: no job selected")
	}
	snap, err := s.backend.GetSchedule(ctx, jobID)
	if err != nil {
		return gate.Decision{}, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	return s.HandleSnapshot(ctx, jobID, snap), nil
}

// JobID returns the selected job.
func (s *Session) JobID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID
}

// Jobs returns the last job list.
func (s *Session) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.jobs)
}

// RefreshJobs lists jobs now.
func (s *Session) RefreshJobs(ctx context.Context) []string {
	return s.watcher.Refresh(ctx)
}

func (s *Session) setJobs(ids []string) {
	s.mu.Lock()
	s.jobs = ids
	s.mu.Unlock()
	s.publish(context.Background(), events.TopicJobsUpdated, events.JobsUpdated{SessionID: s.id, Jobs: ids})
}

func (s *Session) pollStopped(jobID, reason string) {
	s.publish(context.Background(), events.TopicPollStopped, events.PollStopped{SessionID: s.id, JobID: jobID, Reason: reason})
}

// --- Pipeline ---

// HandleSnapshot runs one fetched snapshot through the change gate and, when
// the gate commits, lays it out and summarizes it. Snapshots of a job other
// than the selected one are dropped.
func (s *Session) HandleSnapshot(ctx context.Context, jobID string, snap *model.Snapshot) gate.Decision {
	fp := fingerprint.Of(snap)

	s.mu.Lock()
	if jobID != s.jobID {
		s.mu.Unlock()
		s.logger.Debug("dropping snapshot of unselected job", "job", jobID)
		return gate.Decision{}
	}
	s.last = snap
	s.fetchedAt = time.Now().UTC()
	d := s.gate.Observe(fp)
	if !d.Render {
		s.mu.Unlock()
		s.logger.Debug("render skipped", "job", jobID, "reason", d.Reason, "count", d.Count)
		return d
	}
	r := s.commitLocked(jobID, string(d.Reason), fp.Digest(), snap)
	s.mu.Unlock()

	s.logger.Info("frame rendered", "job", jobID, "reason", d.Reason, "digest", r.Digest, "bars", r.Frame.BarCount())
	s.afterRender(ctx, r, true)
	return d
}

// commitLocked builds and stores a frame and the local report.
func (s *Session) commitLocked(jobID, reason, digest string, snap *model.Snapshot) Render {
	frame := layout.Build(snap, s.view)
	report := s.agg.Local(snap)
	now := time.Now().UTC()

	s.rendered = snap
	s.digest = digest
	s.frame = frame
	s.report = report
	s.renderedAt = now
	s.renders++
	return Render{
		JobID:    jobID,
		Reason:   reason,
		Digest:   digest,
		Snapshot: snap,
		Frame:    frame,
		Report:   report,
		At:       now,
	}
}

func (s *Session) afterRender(ctx context.Context, r Render, analyze bool) {
	s.notify(r)
	s.publish(ctx, events.TopicFrameRendered, s.frameEvent(r))
	if r.Reason != ReasonView {
		s.record(ctx, r)
	}
	if analyze {
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			s.analyze(context.WithoutCancel(ctx), r.JobID, r.Snapshot)
		}()
	}
}

// analyze fetches the remote breakdown and replaces the report. Results are
// applied in completion order, so a slow call may replace the report of a
// newer frame; the report's digest tells the two apart.
func (s *Session) analyze(ctx context.Context, jobID string, snap *model.Snapshot) {
	report := s.agg.Analyze(ctx, snap)
	if report.Advisory != "" {
		s.logger.Warn("score analysis failed", "job", jobID, "advisory", report.Advisory)
	}

	s.mu.Lock()
	s.report = report
	stale := report.Digest != s.digest
	s.mu.Unlock()

	s.publish(ctx, events.TopicAnalysisUpdated, events.AnalysisUpdated{
		SessionID: s.id,
		JobID:     jobID,
		Digest:    report.Digest,
		Stale:     stale,
		Report:    report,
	})
}

func (s *Session) frameEvent(r Render) events.FrameRendered {
	ev := events.FrameRendered{
		SessionID:  s.id,
		JobID:      r.JobID,
		Digest:     r.Digest,
		Reason:     r.Reason,
		ViewMode:   string(r.Frame.ViewMode),
		Zoom:       r.Frame.Zoom,
		Rows:       len(r.Frame.Rows),
		Bars:       r.Frame.BarCount(),
		Omitted:    r.Frame.Omitted,
		Unplaced:   r.Frame.Unplaced,
		RenderedAt: r.At,
		Frame:      r.Frame,
	}
	if r.Snapshot != nil {
		ev.Score = r.Snapshot.Score.String()
		ev.SolverStatus = r.Snapshot.SolverStatus.String()
	}
	return ev
}

func (s *Session) notify(r Render) {
	s.mu.Lock()
	obs := slices.Clone(s.observers)
	s.mu.Unlock()
	for _, fn := range obs {
		fn(r)
	}
}

func (s *Session) publish(ctx context.Context, topic string, event any) {
	if err := s.pub.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("publish failed", "topic", topic, "err", err)
	}
}

func (s *Session) record(ctx context.Context, r Render) {
	if s.journal == nil {
		return
	}
	ev := s.frameEvent(r)
	summary, err := json.Marshal(r.Report.Summary)
	if err != nil {
		s.logger.Warn("encoding summary failed", "err", err)
	}
	rec := &model.RenderRecord{
		SessionID:    s.id,
		JobID:        r.JobID,
		Digest:       r.Digest,
		Reason:       r.Reason,
		Score:        ev.Score,
		SolverStatus: ev.SolverStatus,
		ViewMode:     ev.ViewMode,
		Zoom:         ev.Zoom,
		Rows:         ev.Rows,
		Bars:         ev.Bars,
		Omitted:      ev.Omitted,
		Unplaced:     ev.Unplaced,
		Summary:      summary,
		RenderedAt:   r.At,
	}
	if err := s.journal.RecordRender(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("journal write failed", "job", r.JobID, "err", err)
	}
}

// --- View ---

// SetViewMode switches the row dimension and re-lays out the last rendered
// snapshot.
func (s *Session) SetViewMode(m layout.ViewMode) {
	s.updateView(func(o *layout.Options) { o.ViewMode = m })
}

// SetZoom sets the zoom factor (clamped) and re-lays out.
func (s *Session) SetZoom(z float64) {
	s.updateView(func(o *layout.Options) { o.Zoom = layout.ClampZoom(z) })
}

// ZoomIn zooms in one step.
func (s *Session) ZoomIn() {
	s.updateView(func(o *layout.Options) { o.Zoom = layout.ZoomIn(o.Zoom) })
}

// ZoomOut zooms out one step.
func (s *Session) ZoomOut() {
	s.updateView(func(o *layout.Options) { o.Zoom = layout.ZoomOut(o.Zoom) })
}

// View returns the current view options.
func (s *Session) View() layout.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// updateView applies fn and rebuilds the frame from the last rendered
// snapshot without consulting the gate. Before the first render there is
// nothing to rebuild.
func (s *Session) updateView(fn func(*layout.Options)) {
	s.mu.Lock()
	before := s.view
	fn(&s.view)
	if s.view == before || s.rendered == nil {
		s.mu.Unlock()
		return
	}
	snap := s.rendered
	frame := layout.Build(snap, s.view)
	s.frame = frame
	r := Render{
		JobID:    s.jobID,
		Reason:   ReasonView,
		Digest:   s.digest,
		Snapshot: snap,
		Frame:    frame,
		Report:   s.report,
		At:       time.Now().UTC(),
	}
	s.mu.Unlock()

	s.logger.Debug("view changed", "view_mode", frame.ViewMode, "zoom", frame.Zoom)
	s.afterRender(context.Background(), r, false)
}

// SetPollInterval changes the poll period and restarts polling. An idle
// session resumes the same way SetRefreshMode does.
func (s *Session) SetPollInterval(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", d)
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
	return s.restart(ctx)
}

// SetRefreshMode changes when polling stops and restarts a running loop.
// An idle loop resumes in always mode, or in onlyWhenSolving mode when a
// fresh fetch shows the selected job solving.
func (s *Session) SetRefreshMode(ctx context.Context, m poller.RefreshMode) error {
	s.poll.SetRefreshMode(m)
	return s.restart(ctx)
}

func (s *Session) pollInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Session) restart(ctx context.Context) error {
	if st, jobID, _ := s.poll.State(); st == poller.Polling {
		return s.poll.Start(ctx, jobID, s.pollInterval())
	}
	jobID := s.JobID()
	if jobID == "" {
		return nil
	}
	if s.poll.RefreshMode() == poller.RefreshOnlyWhenSolving {
		snap, err := s.backend.GetSchedule(ctx, jobID)
		if err != nil {
			return fmt.Errorf("fetching job %s: %w", jobID, err)
		}
		s.HandleSnapshot(ctx, jobID, snap)
		if !model.IsActive(snap.SolverStatus.String()) {
			return nil
		}
	}
	return s.poll.Start(ctx, jobID, s.pollInterval())
}

// --- Read side ---

// Frame returns the latest frame, or nil before the first render.
func (s *Session) Frame() *layout.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Report returns the latest report, or nil before the first render.
func (s *Session) Report() *analysis.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Latest returns the selected job with its latest frame and report.
func (s *Session) Latest() (string, *layout.Frame, *analysis.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobID, s.frame, s.report
}

// State returns a snapshot of the session for status displays.
func (s *Session) State() State {
	pollState, _, _ := s.poll.State()
	mode := s.poll.RefreshMode()

	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		SessionID:      s.id,
		JobID:          s.jobID,
		Polling:        pollState == poller.Polling,
		PollIntervalMS: s.interval.Milliseconds(),
		RefreshMode:    mode,
		ViewMode:       s.view.ViewMode,
		Zoom:           s.view.Zoom,
		Renders:        s.renders,
		Digest:         s.digest,
		Jobs:           slices.Clone(s.jobs),
	}
	if s.last != nil {
		st.Score = s.last.Score.String()
		st.SolverStatus = s.last.SolverStatus.String()
		st.Active = model.IsActive(st.SolverStatus)
	}
	if !s.fetchedAt.IsZero() {
		t := s.fetchedAt
		st.FetchedAt = &t
	}
	if !s.renderedAt.IsZero() {
		t := s.renderedAt
		st.RenderedAt = &t
	}
	if s.report != nil {
		st.AnalysisStale = s.report.Digest != s.digest
	}
	return st
}
