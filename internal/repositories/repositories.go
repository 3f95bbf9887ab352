package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/wavecrawl/internal/shared"
)

// NextSequence atomically increments and returns the next sequence number for the given table.
//
// Sequence numbers give jobs a stable submission order independent of UUIDs and clock skew.
func NextSequence(ctx context.Context, db *sql.DB, d shared.Dialect, table string) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequenceTable := table + "_sequence"

	var sequence int
	if d == shared.DialectPostgres {
		err = tx.QueryRowContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1 RETURNING value", sequenceTable)).Scan(&sequence)
		if err != nil {
			return 0, fmt.Errorf("failed to increment sequence: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable)); err != nil {
			return 0, fmt.Errorf("failed to increment sequence: %w", err)
		}
		if err := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable)).Scan(&sequence); err != nil {
			return 0, fmt.Errorf("failed to get sequence value: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sequence transaction: %w", err)
	}

	return sequence, nil
}

// repoErr wraps a driver error as a [shared.ErrRepository].
func repoErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", shared.ErrRepository, op, err)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
