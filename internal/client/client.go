// Package client provides the interface to the scheduling backend and an
// HTTP/JSON implementation that talks to its /schedules REST API.
package client

import (
	"context"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// Backend is the set of solver calls the viewer needs. It is implemented by
// HTTPClient and can be faked in tests.
type Backend interface {
	// Solve starts a job on the backend's default problem and returns its id.
	Solve(ctx context.Context) (string, error)
	// SolveProblem starts a job on the given problem document.
	SolveProblem(ctx context.Context, problem []byte) (string, error)
	// ListJobs returns the known job ids. It never fails: an unreachable
	// backend yields an empty list.
	ListJobs(ctx context.Context) ([]string, error)
	// GetSchedule fetches the current best snapshot of a job.
	GetSchedule(ctx context.Context, jobID string) (*model.Snapshot, error)
	// GetStatus fetches only the score and solver status of a job.
	GetStatus(ctx context.Context, jobID string) (*model.Snapshot, error)
	// StopJob stops solving a job.
	StopJob(ctx context.Context, jobID string) error
	// Analyze asks the backend to break down the score of a snapshot.
	Analyze(ctx context.Context, snap *model.Snapshot) (*model.ScoreAnalysis, error)
}

var _ Backend = (*HTTPClient)(nil)
