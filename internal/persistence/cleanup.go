package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoDatabase is returned by maintenance helpers called without a handle.
var ErrNoDatabase = errors.New("database is not initialized")

// ClearDatabase empties the session catalog and the weather cache in one
// transaction.
func ClearDatabase(ctx context.Context, db *sql.DB) error {
	return inTx(ctx, db, "clear database", func(tx *sql.Tx) error {
		for _, table := range []string{"sessions", "weather_reports"} {
			//goland:noinspection SqlWithoutWhere
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}

		return nil
	})
}

// PruneSessions keeps only the newest keep sessions and returns how many rows
// were removed.
func PruneSessions(ctx context.Context, db *sql.DB, keep int) (int64, error) {
	if db == nil {
		return 0, ErrNoDatabase
	}

	res, err := db.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE id NOT IN (
			SELECT id FROM sessions ORDER BY started_at DESC, id LIMIT ?
		)
	`, max(keep, 0))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}

	return res.RowsAffected()
}

func inTx(ctx context.Context, db *sql.DB, name string, fn func(*sql.Tx) error) error {
	if db == nil {
		return ErrNoDatabase
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", name, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("%s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", name, err)
	}

	return nil
}
