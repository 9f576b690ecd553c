package saga

import (
	"context"
)

type ctxKey struct{}

// WithError stores the error of a failed step for its reject function.
func WithError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, ctxKey{}, err)
}

// GetError returns the error saved by WithError, or nil.
func GetError(ctx context.Context) error {
	err, _ := ctx.Value(ctxKey{}).(error)

	return err
}
