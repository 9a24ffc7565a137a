package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jenkinstray/jenkinstray/internal/history"
)

type JobResultRepo struct {
	db *sql.DB
}

func NewJobResultRepo(db *sql.DB) *JobResultRepo {
	return &JobResultRepo{db: db}
}

func (r *JobResultRepo) Insert(ctx context.Context, e history.Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO job_results(id, project, build_number, status, result, received_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, e.ID, e.Project, e.BuildNumber, int(e.Status), int(e.Result), millis(e.ReceivedAt))
	if err != nil {
		return fmt.Errorf("insert job result: %w", err)
	}

	return nil
}

// ListRecent returns up to limit entries, oldest first.
func (r *JobResultRepo) ListRecent(ctx context.Context, limit int) ([]history.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project, build_number, status, result, received_at
		FROM job_results
		ORDER BY received_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []history.Entry
	for rows.Next() {
		var (
			e          history.Entry
			status     int
			result     int
			receivedAt int64
		)
		if err := rows.Scan(&e.ID, &e.Project, &e.BuildNumber, &status, &result, &receivedAt); err != nil {
			return nil, fmt.Errorf("scan job result: %w", err)
		}
		e.Status = history.Status(status)
		e.Result = history.Result(result)
		e.ReceivedAt = fromMillis(receivedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job results: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}

func (r *JobResultRepo) Clear(ctx context.Context) error {
	return ClearDatabase(ctx, r.db)
}

// Prune trims the table to the newest keep rows.
func (r *JobResultRepo) Prune(ctx context.Context, keep int) error {
	_, err := PruneJobResults(ctx, r.db, keep)

	return err
}

// received_at is stored as unix millis, 0 for an unknown time.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func fromMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(v)
}
