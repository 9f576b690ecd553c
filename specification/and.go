package specification

import (
	"errors"
)

// AndSpecification is satisfied when every inner specification is.
// Its error joins the errors of all failing ones.
type AndSpecification[T any] struct {
	specs []Specification[T]
}

func (a *AndSpecification[T]) IsSatisfiedBy(item *T) error {
	var errs error

	for _, spec := range a.specs {
		if err := spec.IsSatisfiedBy(item); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

func NewAndSpecification[T any](specs ...Specification[T]) *AndSpecification[T] {
	return &AndSpecification[T]{specs: specs}
}
