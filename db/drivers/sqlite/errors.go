package sqlite

import (
	"errors"
	"fmt"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	ErrDatabaseOpen = errors.New("sqlite: failed to open database")
	ErrEmptyName    = errors.New("sqlite: database name is empty")
)

// StoreError describes a failed store operation.
type StoreError struct {
	Op      string
	Err     error
	Details string
}

func (e *StoreError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("sqlite %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("sqlite %s: %v (%s)", e.Op, e.Err, e.Details)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	default:
		return false
	}
}
