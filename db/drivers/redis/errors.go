package redis

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURI       = errors.New("redis: invalid uri")
	ErrClientConnection = errors.New("redis: client connection failed")
)

// StoreError describes a failed store operation.
type StoreError struct {
	Op      string
	Err     error
	Details string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("redis %s: %v (%s)", e.Op, e.Err, e.Details)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
