package store

import (
	"context"
	"database/sql"
)

// withTx runs fn inside a transaction: begin → fn → commit, with rollback on
// any error or panic. All multi-step store operations go through it so no
// exit path can leave a partial commit behind.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
