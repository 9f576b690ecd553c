package coordinator

import (
	"fmt"

	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/failure"
)

// StepError is the error a workflow step failed with.
type StepError struct {
	Err     error
	Failure *contract.Failure
	Step    string
	Command string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s (%s): %v", e.Step, e.Command, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StatusCode prefers the status carried by the failure event, then its kind,
// then the kind of the local error.
func (e *StepError) StatusCode() int {
	if e.Failure != nil {
		if e.Failure.Status > 0 {
			return e.Failure.Status
		}

		if e.Failure.Kind != "" {
			return failure.StatusCode(failure.ParseKind(e.Failure.Kind))
		}
	}

	return failure.StatusCode(failure.KindOf(e.Err))
}

// Kind of the failure.
func (e *StepError) Kind() failure.Kind {
	if e.Failure != nil && e.Failure.Kind != "" {
		return failure.ParseKind(e.Failure.Kind)
	}

	return failure.KindOf(e.Err)
}

// Reason is the human readable cause.
func (e *StepError) Reason() string {
	if e.Failure != nil && e.Failure.Reason != "" {
		return e.Failure.Reason
	}

	return e.Err.Error()
}
