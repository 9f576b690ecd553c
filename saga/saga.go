/*
Saga package runs a linear chain of steps and compensates completed steps in
reverse order when one fails.
*/
package saga

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errNoSteps = errors.New("saga: no steps")

type Saga struct {
	name    string
	steps   []*Step
	options Options
}

func New(name string, opts ...Option) *Saga {
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	return &Saga{
		name:    name,
		options: options,
	}
}

// AddStep appends a step. reject may be nil when the step has no compensation.
func (s *Saga) AddStep(name string, then ThenFunc, reject RejectFunc) *Saga {
	s.steps = append(s.steps, &Step{
		name:   name,
		then:   then,
		reject: reject,
		status: INIT,
	})

	return s
}

// Steps returns the steps in execution order.
func (s *Saga) Steps() []*Step {
	return s.steps
}

// Play runs the steps in order. On the first failure it stops, compensates
// and returns the failed step with its error. Steps after the failed one are
// never run. A nil step means every step completed.
func (s *Saga) Play(ctx context.Context) (*Step, error) {
	if len(s.steps) == 0 {
		return nil, errNoSteps
	}

	for i, step := range s.steps {
		step.ctx = ctx

		if err := step.Run(); err != nil {
			s.compensate(ctx, i, err)

			return step, err
		}
	}

	return nil, nil
}

// compensate rejects steps failed..0 in reverse order. Compensation failures
// are kept on the step and never retried.
func (s *Saga) compensate(ctx context.Context, failed int, failErr error) {
	span := trace.SpanFromContext(ctx)
	if span != nil && span.SpanContext().IsValid() {
		span.AddEvent("saga.compensate", trace.WithAttributes(
			attribute.String("saga", s.name),
			attribute.String("failed_step", s.steps[failed].name),
		))
	}

	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.options.CompensationTimeout)
	defer cancel()

	for i := failed; i >= 0; i-- {
		step := s.steps[i]

		if i == failed {
			if step.reject == nil || s.options.CompensateFailed == nil || !s.options.CompensateFailed(failErr) {
				continue
			}

			step.ctx = WithError(compCtx, failErr)
		} else {
			step.ctx = compCtx
		}

		_ = step.Reject()
	}
}
