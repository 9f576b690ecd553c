package handlers

import (
	"context"
	"fmt"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/watermill/dlq"
)

// EnvelopeHandler processes decoded envelopes of any routing key.
type EnvelopeHandler interface {
	Handle(ctx context.Context, env cqrsmessage.Envelope) error
}

// EnvelopeHandlerFunc adapts a function to EnvelopeHandler.
type EnvelopeHandlerFunc func(ctx context.Context, env cqrsmessage.Envelope) error

func (f EnvelopeHandlerFunc) Handle(ctx context.Context, env cqrsmessage.Envelope) error {
	return f(ctx, env)
}

// NewEnvelopeHandler adapts logic to a Watermill handler function.
// Messages that cannot be decoded are marked permanent and go to the dead-letter topic.
func NewEnvelopeHandler(logic EnvelopeHandler, marshaler cqrsmessage.Marshaler) wmmessage.NoPublishHandlerFunc {
	return func(msg *wmmessage.Message) error {
		env, ctx, err := decodeEnvelope(msg, logic != nil, marshaler)
		if err != nil {
			return err
		}

		return logic.Handle(ctx, env)
	}
}

func decodeEnvelope(
	msg *wmmessage.Message,
	hasLogic bool,
	marshaler cqrsmessage.Marshaler,
) (cqrsmessage.Envelope, context.Context, error) {
	if msg == nil {
		return cqrsmessage.Envelope{}, nil, dlq.Permanent(errNilMessage)
	}
	if !hasLogic {
		return cqrsmessage.Envelope{}, nil, errNilLogic
	}
	if marshaler == nil {
		return cqrsmessage.Envelope{}, nil, errNilMarshaler
	}

	env, err := marshaler.Unmarshal(msg)
	if err != nil {
		return cqrsmessage.Envelope{}, nil, dlq.Permanent(fmt.Errorf("decode message %s: %w", msg.UUID, err))
	}

	ctx := msg.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	return env, ctx, nil
}
