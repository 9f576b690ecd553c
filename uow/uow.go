/*
Package uow runs a unit of work in one SQL transaction.

The transaction travels in the context, so store methods called inside Do
join it instead of opening their own.
*/
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Do runs fn inside a transaction on conn and commits when fn succeeds.
// When ctx already carries a transaction fn joins it and the outer Do commits.
func Do(ctx context.Context, conn *sql.DB, fn func(ctx context.Context) error) (err error) {
	if HasTx(ctx) {
		return fn(ctx)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if errRollback := tx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", errRollback))
			}
		}
	}()

	if err = fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Tx returns the transaction carried by ctx. Stores call it inside Do.
func Tx(ctx context.Context) (*sql.Tx, error) {
	tx := FromContext(ctx)
	if tx == nil {
		return nil, ErrNoTx
	}

	return tx, nil
}

// ErrNoTx is returned by Tx outside Do.
var ErrNoTx = errors.New("uow: no transaction in context")
