package db

import "errors"

var (
	// ErrGetConnection is returned when a store exposes an unexpected connection type.
	ErrGetConnection = errors.New("db: failed to get connection")
	// ErrUnknownStore is returned for an unsupported store type.
	ErrUnknownStore = errors.New("db: unknown store type")
)
