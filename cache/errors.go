package cache

import "fmt"

// InitCacheError wraps a failure to build the shared tier.
type InitCacheError struct {
	Err error
}

func (e *InitCacheError) Error() string {
	return fmt.Sprintf("failed to init cache: %v", e.Err)
}

func (e *InitCacheError) Unwrap() error {
	return e.Err
}
