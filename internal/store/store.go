package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// Store defines the persistence interface for the render journal.
type Store interface {
	// RecordRender appends a render and sets its ID.
	RecordRender(ctx context.Context, r *model.RenderRecord) error
	// ListRenders returns matching renders, newest first.
	ListRenders(ctx context.Context, filter model.RenderFilter) ([]*model.RenderRecord, error)
	// LatestRender returns the newest render of a job, or sql.ErrNoRows.
	LatestRender(ctx context.Context, jobID string) (*model.RenderRecord, error)
	// PruneRenders deletes renders older than before and returns how many.
	PruneRenders(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
