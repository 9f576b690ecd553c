package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/watermill/dlq"
)

type accountOpened struct {
	ClientID string `json:"clientId"`
	Number   string `json:"numero"`
}

func encode(t *testing.T, env cqrsmessage.Envelope) *wmmessage.Message {
	t.Helper()

	msg, err := cqrsmessage.NewJSONMarshaler("test").Marshal(env)
	require.NoError(t, err)

	return msg
}

func TestEventHandlerDecodesBody(t *testing.T) {
	var got Event[accountOpened]

	h := NewEventHandler[accountOpened](EventHandlerFunc[accountOpened](func(_ context.Context, evt Event[accountOpened]) error {
		got = evt

		return nil
	}), cqrsmessage.NewJSONMarshaler("test"))

	msg := encode(t, cqrsmessage.NewEvent("account.created", "corr-1", cqrsmessage.Payload{"clientId": "c-1", "numero": "1000"}))
	require.NoError(t, h(msg))

	assert.Equal(t, "c-1", got.Body.ClientID)
	assert.Equal(t, "1000", got.Body.Number)
	assert.Equal(t, "corr-1", got.Envelope.CorrelationID)
	assert.Equal(t, "account.created", got.Envelope.Type)
}

func TestEventHandlerPoisonsMalformedBodies(t *testing.T) {
	called := false
	h := NewEventHandler[accountOpened](EventHandlerFunc[accountOpened](func(context.Context, Event[accountOpened]) error {
		called = true

		return nil
	}), cqrsmessage.NewJSONMarshaler("test"))

	// numero must be a string
	msg := encode(t, cqrsmessage.NewEvent("account.created", "corr-1", cqrsmessage.Payload{"numero": []int{1}}))
	err := h(msg)
	require.Error(t, err)
	assert.True(t, dlq.IsPermanent(err))
	assert.False(t, called)

	raw := wmmessage.NewMessage("m-1", []byte("{not json"))
	raw.Metadata.Set(cqrsmessage.MetadataMessageType, "account.created")
	err = h(raw)
	require.Error(t, err)
	assert.True(t, dlq.IsPermanent(err))
}

func TestEventHandlerRejectsCommands(t *testing.T) {
	h := NewEventHandler[accountOpened](EventHandlerFunc[accountOpened](func(context.Context, Event[accountOpened]) error {
		return nil
	}), cqrsmessage.NewJSONMarshaler("test"))

	err := h(encode(t, cqrsmessage.NewCommand("account.create", "corr-1", cqrsmessage.Payload{})))
	require.ErrorIs(t, err, errWrongKind)
	assert.True(t, dlq.IsPermanent(err))
}

func TestEnvelopeHandlerPropagatesLogicErrors(t *testing.T) {
	boom := errors.New("boom")
	h := NewEnvelopeHandler(EnvelopeHandlerFunc(func(context.Context, cqrsmessage.Envelope) error {
		return boom
	}), cqrsmessage.NewJSONMarshaler("test"))

	err := h(encode(t, cqrsmessage.NewEvent("client.approved", "corr-1", cqrsmessage.Payload{"clientId": "c-1"})))
	require.ErrorIs(t, err, boom)
	assert.False(t, dlq.IsPermanent(err))
}

func TestEnvelopeHandlerNilGuards(t *testing.T) {
	h := NewEnvelopeHandler(nil, cqrsmessage.NewJSONMarshaler("test"))
	require.ErrorIs(t, h(encode(t, cqrsmessage.NewEvent("client.approved", "c", nil))), errNilLogic)

	h = NewEnvelopeHandler(EnvelopeHandlerFunc(func(context.Context, cqrsmessage.Envelope) error { return nil }), nil)
	require.ErrorIs(t, h(encode(t, cqrsmessage.NewEvent("client.approved", "c", nil))), errNilMarshaler)
}

func TestDecorateHandlerTimeoutCancelsContext(t *testing.T) {
	h := DecorateHandler(func(msg *wmmessage.Message) error {
		select {
		case <-msg.Context().Done():
			return msg.Context().Err()
		case <-time.After(time.Second):
			return nil
		}
	}, DecoratorConfig{Timeout: 10 * time.Millisecond})

	err := h(wmmessage.NewMessage("m-1", []byte("{}")))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
