package leveldb

import (
	"errors"
	"fmt"
)

var ErrDatabaseOpen = errors.New("leveldb: failed to open database")

// StoreError describes a failed store operation.
type StoreError struct {
	Op      string
	Err     error
	Details string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("leveldb %s: %v (%s)", e.Op, e.Err, e.Details)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
