package migrate

import "fmt"

// MigrationError wraps a failed migration step.
type MigrationError struct {
	Err         error
	Description string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration: %s: %v", e.Description, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
