package saga

import (
	"time"
)

// Options tune how a saga compensates.
type Options struct {
	// CompensateFailed decides whether the failed step itself is compensated,
	// e.g. when its outcome is unknown after a timeout. Nil never compensates it.
	CompensateFailed func(err error) bool
	// CompensationTimeout bounds the whole compensation phase. It is measured
	// from the failure, independent of the forward deadline.
	CompensationTimeout time.Duration
}

type Option func(*Options)

func WithCompensationTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.CompensationTimeout = timeout
	}
}

func WithCompensateFailed(fn func(err error) bool) Option {
	return func(o *Options) {
		o.CompensateFailed = fn
	}
}

func defaultOptions() Options {
	return Options{
		CompensationTimeout: 10 * time.Second, //nolint:mnd // default
	}
}
