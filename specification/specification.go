/*
Package specification composes predicates over read-model rows.

A specification reports why an item does not match through its error, so a
caller can log the reason a row was filtered out.
*/
package specification

// Specification is satisfied by an item when IsSatisfiedBy returns nil.
type Specification[T any] interface {
	IsSatisfiedBy(item *T) error
}

// Func adapts a function to Specification.
type Func[T any] func(item *T) error

func (f Func[T]) IsSatisfiedBy(item *T) error {
	return f(item)
}

// Filter returns the items that satisfy spec, in their original order.
// The result is never nil.
func Filter[T any](items []*T, spec Specification[T]) ([]*T, error) {
	out := make([]*T, 0, len(items))

	for _, item := range items {
		if spec.IsSatisfiedBy(item) == nil {
			out = append(out, item)
		}
	}

	return out, nil
}
