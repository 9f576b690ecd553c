/*
Package failure classifies the errors a workflow can stop on.

Workers convert every error into a failure event whose kind and status come
from this package; the coordinator maps them back onto a Result.
*/
package failure

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the class of a failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
	// KindTimeout never leaves the coordinator.
	KindTimeout Kind = "timeout"
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Err     error
	Kind    Kind
	Op      string
	Details string
}

func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}

	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New classifies err. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a 400-class failure.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFound builds a 404-class failure.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// Conflict builds a 409-class failure.
func Conflict(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Err: fmt.Errorf(format, args...)}
}

// Internal wraps an unexpected error.
func Internal(op string, err error) error {
	return New(KindInternal, op, err)
}

// Timeout builds the coordinator-local timeout failure.
func Timeout(op, format string, args ...any) error {
	return &Error{Kind: KindTimeout, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Kind
	}

	return KindInternal
}

// StatusCode maps a kind onto its HTTP-like status.
func StatusCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ParseKind is the inverse of Kind's string form. Unknown values map to KindInternal.
func ParseKind(raw string) Kind {
	switch Kind(raw) {
	case KindValidation, KindNotFound, KindConflict, KindTimeout:
		return Kind(raw)
	default:
		return KindInternal
	}
}
