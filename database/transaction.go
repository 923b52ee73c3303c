package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// WithTransaction executes a function within a database transaction
// If the function returns an error, the transaction is rolled back
// Otherwise, the transaction is committed
func (db *DB) WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CheckSchema verifies that the ledger tables exist, so a server started
// with AUTO_MIGRATE=false fails at startup rather than on the first command
func (db *DB) CheckSchema(ctx context.Context) error {
	return db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"users", "holdings"} {
			var exists bool
			err := tx.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check table %s: %w", table, err)
			}
			if !exists {
				return fmt.Errorf("table %s does not exist; run migrations first", table)
			}
		}
		return nil
	})
}
