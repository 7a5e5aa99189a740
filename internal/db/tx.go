package db

import (
	"context"
	"database/sql"
)

// DBTX is the subset of sql.DB/sql.Tx the repositories query through, so the
// same code runs inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RunInTx starts a transaction and runs fn with a repository bound to it.
// COMMIT when fn returns nil, ROLLBACK otherwise.
func (r *Repository) RunInTx(ctx context.Context, fn func(ctx context.Context, r *Repository) error) error {
	if r.db == nil {
		// Already inside a transaction; nested scopes join the outer one.
		return fn(ctx, r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &Repository{q: tx}
	if err := fn(ctx, txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
