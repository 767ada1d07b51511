package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanRender scans a single row into a model.RenderRecord.
// The row must contain columns in the order defined by renderColumns.
func scanRender(row scannable) (*model.RenderRecord, error) {
	var r model.RenderRecord
	var (
		score        sql.NullString
		solverStatus sql.NullString
		summary      []byte
	)

	err := row.Scan(
		&r.ID,
		&r.SessionID,
		&r.JobID,
		&r.Digest,
		&r.Reason,
		&score,
		&solverStatus,
		&r.ViewMode,
		&r.Zoom,
		&r.Rows,
		&r.Bars,
		&r.Omitted,
		&r.Unplaced,
		&summary,
		&r.RenderedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Score = score.String
	r.SolverStatus = solverStatus.String
	if len(summary) > 0 {
		r.Summary = json.RawMessage(summary)
	}
	return &r, nil
}

// scanRenders scans all rows into a slice of renders.
func scanRenders(rows *sql.Rows) ([]*model.RenderRecord, error) {
	defer rows.Close()
	var out []*model.RenderRecord
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullString converts an empty string to a NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
