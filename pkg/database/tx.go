package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// InTx runs fn inside one transaction and makes that transaction visible to
// every query issued through Ext(ctx) while fn runs.
//
// Usage in repositories:
//
//	err := r.db.InTx(ctx, func(ctx context.Context) error {
//	    return sqlx.GetContext(ctx, r.db.Ext(ctx), &p, "SELECT * FROM products WHERE id = $1", id)
//	})
//
// When the DB has a lock timeout, it is applied with SET LOCAL so a blocked
// row lock fails the transaction instead of waiting forever. Nested calls
// reuse the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(context.Context) error) error {
	if db.txFrom(ctx) != nil {
		return fn(ctx)
	}

	return db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if db.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", db.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set lock_timeout: %w", err)
			}
		}

		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Ext returns the transaction bound to ctx, or the pool when there is none
func (db *DB) Ext(ctx context.Context) sqlx.ExtContext {
	if tx := db.txFrom(ctx); tx != nil {
		return tx
	}
	return db.DB
}

func (db *DB) txFrom(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
