package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is a single atomic unit of work over the flow graph. The ingestor
// wraps steps 2-5 of its per-line algorithm in one Tx so that a failure
// anywhere rolls back the full set of mutations for that line.
type Tx struct {
	tx    *sql.Tx
	store *Store
}

// WithTx runs fn inside a single database transaction, committing on a
// nil return and rolling back otherwise. This is the only way callers
// mutate the flow graph past initialization, matching the "per-line
// atomicity" design note: ingestion steps 2-5 commit or roll back
// together.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &Tx{tx: sqlTx, store: s}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
