package specification

import (
	"errors"
)

var ErrNotSatisfied = errors.New("specification not satisfied")

// NotSpecification inverts another specification.
type NotSpecification[T any] struct {
	spec Specification[T]
}

func (n *NotSpecification[T]) IsSatisfiedBy(item *T) error {
	if n.spec.IsSatisfiedBy(item) == nil {
		return ErrNotSatisfied
	}

	return nil
}

func NewNotSpecification[T any](spec Specification[T]) *NotSpecification[T] {
	return &NotSpecification[T]{spec: spec}
}
