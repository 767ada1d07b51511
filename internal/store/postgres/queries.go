package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// renderColumns is the column list used for SELECT statements on the renders table.
const renderColumns = `id, session_id, job_id, digest, reason, score, solver_status,
	view_mode, zoom, row_count, bar_count, omitted, unplaced, summary, rendered_at`

// defaultListLimit caps ListRenders when the filter sets no limit.
const defaultListLimit = 50

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryRecordRender(ctx context.Context, db executor, r *model.RenderRecord) error {
	if r.RenderedAt.IsZero() {
		r.RenderedAt = time.Now().UTC()
	}
	row := db.QueryRowContext(ctx, `
		INSERT INTO renders (
			session_id, job_id, digest, reason, score, solver_status,
			view_mode, zoom, row_count, bar_count, omitted, unplaced, summary, rendered_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13, $14
		) RETURNING id`,
		r.SessionID,
		r.JobID,
		r.Digest,
		r.Reason,
		nullString(r.Score),
		nullString(r.SolverStatus),
		r.ViewMode,
		r.Zoom,
		r.Rows,
		r.Bars,
		r.Omitted,
		r.Unplaced,
		jsonbBytes(r.Summary),
		r.RenderedAt,
	)
	return row.Scan(&r.ID)
}

func queryListRenders(ctx context.Context, db executor, filter model.RenderFilter) ([]*model.RenderRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		where = append(where, fmt.Sprintf("session_id = $%d", len(args)))
	}
	if filter.JobID != "" {
		args = append(args, filter.JobID)
		where = append(where, fmt.Sprintf("job_id = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		where = append(where, fmt.Sprintf("rendered_at >= $%d", len(args)))
	}

	q := `SELECT ` + renderColumns + ` FROM renders`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY rendered_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanRenders(rows)
}

func queryLatestRender(ctx context.Context, db executor, jobID string) (*model.RenderRecord, error) {
	row := db.QueryRowContext(ctx, `SELECT `+renderColumns+` FROM renders
		WHERE job_id = $1 ORDER BY rendered_at DESC, id DESC LIMIT 1`, jobID)
	return scanRender(row)
}

func queryPruneRenders(ctx context.Context, db executor, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM renders WHERE rendered_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
