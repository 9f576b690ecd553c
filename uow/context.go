package uow

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// FromContext returns the *sql.Tx from ctx, or nil if not set.
func FromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(ctxKey{}).(*sql.Tx)
	return tx
}

// WithTx returns a context that carries the given transaction.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, ctxKey{}, tx)
}

// HasTx reports whether ctx contains a transaction.
func HasTx(ctx context.Context) bool {
	return FromContext(ctx) != nil
}
