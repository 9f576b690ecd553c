package worker

import (
	"errors"
)

var (
	errNilEvents          = errors.New("worker: event publisher is required")
	errUnknownCommand     = errors.New("worker: no handler for command")
	errMissingSuccess     = errors.New("worker: command has no success event")
	errMissingCorrelation = errors.New("worker: command has no correlation id")
)
