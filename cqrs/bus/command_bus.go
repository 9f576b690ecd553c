package bus

import (
	"context"
	"errors"
	"fmt"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
)

var (
	errCommandBusUninitialized = errors.New("cqrs/bus: command bus is not initialized")
	errCommandPublisherNil     = errors.New("cqrs/bus: publisher is required")
	errCommandMarshalerNil     = errors.New("cqrs/bus: marshaler is required")
	errCommandTypeEmpty        = errors.New("cqrs/bus: command type is empty")
	errCommandCorrelationEmpty = errors.New("cqrs/bus: command correlation id is empty")
)

// CommandBus publishes commands to underlying transport.
type CommandBus struct {
	publisher wmmessage.Publisher
	marshaler cqrsmessage.Marshaler
	namer     *cqrsmessage.Namer
}

// NewCommandBus builds a bus backed by Watermill publisher.
func NewCommandBus(pub wmmessage.Publisher, marshaler cqrsmessage.Marshaler, namer *cqrsmessage.Namer) *CommandBus {
	return &CommandBus{
		publisher: pub,
		marshaler: marshaler,
		namer:     namer,
	}
}

// validate checks that the command bus and its dependencies are properly initialized.
func (b *CommandBus) validate(cmd cqrsmessage.Envelope) error {
	if b == nil {
		return errCommandBusUninitialized
	}
	if b.publisher == nil {
		return errCommandPublisherNil
	}
	if b.marshaler == nil {
		return errCommandMarshalerNil
	}
	if cmd.Type == "" {
		return errCommandTypeEmpty
	}
	if cmd.CorrelationID == "" {
		return errCommandCorrelationEmpty
	}
	return nil
}

// Send encodes and publishes command with bank metadata and tracing context.
func (b *CommandBus) Send(ctx context.Context, cmd cqrsmessage.Envelope, opts ...PublishOption) error {
	if err := b.validate(cmd); err != nil {
		return err
	}

	cmd.Kind = cqrsmessage.KindCommand

	return publish(ctx, b.publisher, b.marshaler, b.namer, cmd, applyPublishOptions(opts))
}

func publish(
	ctx context.Context,
	publisher wmmessage.Publisher,
	marshaler cqrsmessage.Marshaler,
	namer *cqrsmessage.Namer,
	env cqrsmessage.Envelope,
	po publishOptions,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if po.publisher != nil {
		publisher = po.publisher
	}

	if service := namer.ServiceName(); service != "" {
		ctx = cqrsmessage.WithServiceName(ctx, service)
	}

	msg, err := marshaler.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s %s: %w", env.Kind, env.Type, err)
	}

	for k, v := range po.metadata {
		msg.Metadata.Set(k, v)
	}

	cqrsmessage.SetTrace(ctx, msg)

	topic := namer.Topic(env.Type)
	if err := publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", env.Type, topic, err)
	}

	return nil
}
