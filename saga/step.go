package saga

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ThenFunc performs a step.
type ThenFunc func(ctx context.Context) error

// RejectFunc compensates a step. thenErr is nil for steps that completed and
// the step's own error for the step that failed.
type RejectFunc func(ctx context.Context, thenErr error) error

type Step struct {
	ctx       context.Context
	then      ThenFunc
	reject    RejectFunc
	rejectErr error
	name      string
	status    StepState
}

// Name of the step.
func (s *Step) Name() string { return s.name }

// Status of the step.
func (s *Step) Status() StepState { return s.status }

// Err is the error the step failed with, if any.
func (s *Step) Err() error {
	if s.ctx == nil {
		return nil
	}

	return GetError(s.ctx)
}

// RejectErr is the error of the step's compensation, if any.
func (s *Step) RejectErr() error { return s.rejectErr }

// HasCompensation reports whether the step declares a reject function.
func (s *Step) HasCompensation() bool { return s.reject != nil }

func (s *Step) Run() error {
	// add event to parent saga span instead of creating a new span
	span := trace.SpanFromContext(s.ctx)
	if span != nil && span.SpanContext().IsValid() {
		span.AddEvent("saga.step", trace.WithAttributes(
			attribute.String("step", s.name),
			attribute.String("status", "run"),
		))
	}

	s.status = RUN

	err := s.then(s.ctx)
	if err != nil {
		s.status = REJECT

		// set tracing error
		if span != nil && span.SpanContext().IsValid() {
			span.RecordError(err)
			span.AddEvent("saga.step.error", trace.WithAttributes(
				attribute.String("step", s.name),
				attribute.String("status", "reject"),
				attribute.String("error", err.Error()),
			))
		}

		// save error in context
		s.ctx = WithError(s.ctx, err)

		return err
	}

	if span != nil && span.SpanContext().IsValid() {
		span.AddEvent("saga.step.done", trace.WithAttributes(
			attribute.String("step", s.name),
			attribute.String("status", "done"),
		))
	}

	s.status = DONE

	return nil
}

func (s *Step) Reject() error {
	// add event to parent saga span instead of creating a new span
	span := trace.SpanFromContext(s.ctx)
	if span != nil && span.SpanContext().IsValid() {
		span.AddEvent("saga.step.reject", trace.WithAttributes(
			attribute.String("step", s.name),
			attribute.String("status", "reject"),
		))
	}

	s.status = REJECT

	// Check on a compensation step
	if s.reject == nil {
		return nil
	}

	// Get error from context
	thenErr := GetError(s.ctx)

	err := s.reject(s.ctx, thenErr)
	if err != nil {
		if span != nil && span.SpanContext().IsValid() {
			span.RecordError(err)
			span.AddEvent("saga.step.reject.error", trace.WithAttributes(
				attribute.String("step", s.name),
				attribute.String("status", "fail"),
				attribute.String("error", err.Error()),
			))
		}

		s.status = FAIL
		s.rejectErr = err

		return err
	}

	if span != nil && span.SpanContext().IsValid() {
		span.AddEvent("saga.step.compensate", trace.WithAttributes(
			attribute.String("step", s.name),
			attribute.String("status", "rollback"),
		))
	}

	s.status = ROLLBACK

	return nil
}
