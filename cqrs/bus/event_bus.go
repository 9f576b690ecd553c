package bus

import (
	"context"
	"errors"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
)

var (
	errEventBusUninitialized = errors.New("cqrs/bus: event bus is not initialized")
	errEventPublisherNil     = errors.New("cqrs/bus: publisher is required")
	errEventMarshalerNil     = errors.New("cqrs/bus: marshaler is required")
	errEventTypeEmpty        = errors.New("cqrs/bus: event type is empty")
)

// EventBus publishes domain events.
type EventBus struct {
	publisher wmmessage.Publisher
	marshaler cqrsmessage.Marshaler
	namer     *cqrsmessage.Namer
}

// NewEventBus builds EventBus with required dependencies.
func NewEventBus(pub wmmessage.Publisher, marshaler cqrsmessage.Marshaler, namer *cqrsmessage.Namer) *EventBus {
	return &EventBus{
		publisher: pub,
		marshaler: marshaler,
		namer:     namer,
	}
}

// validate checks that the event bus and its dependencies are properly initialized.
func (b *EventBus) validate(evt cqrsmessage.Envelope) error {
	if b == nil {
		return errEventBusUninitialized
	}
	if b.publisher == nil {
		return errEventPublisherNil
	}
	if b.marshaler == nil {
		return errEventMarshalerNil
	}
	if evt.Type == "" {
		return errEventTypeEmpty
	}
	return nil
}

// Publish sends event using canonical topic name.
// Events without a correlation id are allowed: the projector journal accepts them.
func (b *EventBus) Publish(ctx context.Context, evt cqrsmessage.Envelope, opts ...PublishOption) error {
	if err := b.validate(evt); err != nil {
		return err
	}

	evt.Kind = cqrsmessage.KindEvent

	return publish(ctx, b.publisher, b.marshaler, b.namer, evt, applyPublishOptions(opts))
}
