package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var errNilDB = errors.New("database is not initialized")

// ClearDatabase removes every stored job result.
func ClearDatabase(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errNilDB
	}
	//goland:noinspection SqlWithoutWhere
	if _, err := db.ExecContext(ctx, `DELETE FROM job_results;`); err != nil {
		return fmt.Errorf("clear job results: %w", err)
	}

	return nil
}

// PruneJobResults keeps the newest keep rows and deletes the rest.
func PruneJobResults(ctx context.Context, db *sql.DB, keep int) (int64, error) {
	if db == nil {
		return 0, errNilDB
	}
	if keep < 0 {
		keep = 0
	}

	res, err := db.ExecContext(ctx, `
		DELETE FROM job_results
		WHERE rowid NOT IN (
			SELECT rowid FROM job_results
			ORDER BY received_at DESC, rowid DESC
			LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune job results: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune job results: %w", err)
	}

	return n, nil
}
