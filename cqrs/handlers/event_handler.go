package handlers

import (
	"context"
	"fmt"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/watermill/dlq"
)

// Event is a decoded event body together with its envelope.
type Event[T any] struct {
	Envelope cqrsmessage.Envelope
	Body     T
}

// EventHandler processes immutable events.
type EventHandler[T any] interface {
	Handle(ctx context.Context, evt Event[T]) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc[T any] func(ctx context.Context, evt Event[T]) error

func (f EventHandlerFunc[T]) Handle(ctx context.Context, evt Event[T]) error {
	return f(ctx, evt)
}

// NewEventHandler adapts typed handler to Watermill handler function.
// A body that does not decode into T is poison.
func NewEventHandler[T any](logic EventHandler[T], marshaler cqrsmessage.Marshaler) wmmessage.NoPublishHandlerFunc {
	return func(msg *wmmessage.Message) error {
		env, ctx, err := decodeEnvelope(msg, logic != nil, marshaler)
		if err != nil {
			return err
		}

		if env.Kind != "" && env.Kind != cqrsmessage.KindEvent {
			return dlq.Permanent(fmt.Errorf("%w: %s is a %s", errWrongKind, env.Type, env.Kind))
		}

		var body T
		if err := env.Payload.Decode(&body); err != nil {
			return dlq.Permanent(fmt.Errorf("event %s: %w", env.Type, err))
		}

		if err := logic.Handle(ctx, Event[T]{Envelope: env, Body: body}); err != nil {
			return fmt.Errorf("handle event %s: %w", env.Type, err)
		}

		return nil
	}
}
