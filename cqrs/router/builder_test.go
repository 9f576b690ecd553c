package router

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/cqrs/bus"
	"github.com/shortlink-org/bank-saga/cqrs/handlers"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
)

type staticSource struct {
	sub    wmmessage.Subscriber
	groups []string
}

func (s *staticSource) SubscriberFor(group string) (wmmessage.Subscriber, error) {
	s.groups = append(s.groups, group)

	return s.sub, nil
}

func TestRegisterDeliversToHandler(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	namer := cqrsmessage.NewNamer("bank", "test")
	marshaler := cqrsmessage.NewJSONMarshaler("test")

	r, err := wmmessage.NewRouter(wmmessage.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)

	received := make(chan cqrsmessage.Envelope, 1)
	source := &staticSource{sub: pubSub}

	err = Register(r, source, RouterConfig{
		Group: "Projector",
		Namer: namer,
		Handlers: []HandlerRegistration{{
			RoutingKey: "account.created",
			Handler: handlers.NewEnvelopeHandler(handlers.EnvelopeHandlerFunc(func(_ context.Context, env cqrsmessage.Envelope) error {
				received <- env

				return nil
			}), marshaler),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"projector"}, source.groups)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = r.Run(ctx) }()
	<-r.Running()

	evtBus := bus.NewEventBus(pubSub, marshaler, namer)
	require.NoError(t, evtBus.Publish(ctx, cqrsmessage.NewEvent("account.created", "corr-1", cqrsmessage.Payload{"clientId": "c-1"})))

	select {
	case env := <-received:
		assert.Equal(t, "corr-1", env.CorrelationID)
		assert.Equal(t, "c-1", env.Payload.String("clientId"))
	case <-time.After(5 * time.Second):
		t.Fatal("handler was not called")
	}

	require.NoError(t, r.Close())
	require.NoError(t, pubSub.Close())
}

func TestRegisterValidation(t *testing.T) {
	r, err := wmmessage.NewRouter(wmmessage.RouterConfig{}, watermill.NopLogger{})
	require.NoError(t, err)

	source := &staticSource{sub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})}

	require.ErrorIs(t, Register(nil, source, RouterConfig{}), errNilRouter)
	require.ErrorIs(t, Register(r, nil, RouterConfig{}), errNilSubscriber)
	require.ErrorIs(t, Register(r, source, RouterConfig{}), errNoHandlers)
	require.ErrorIs(t, Register(r, source, RouterConfig{
		Handlers: []HandlerRegistration{{RoutingKey: "client.approved"}},
	}), errNilHandlerLogic)
}

func TestHandlerNameDefaultsToGroupAndKey(t *testing.T) {
	reg := HandlerRegistration{RoutingKey: " account.created "}.sanitize("journal")

	assert.Equal(t, "account.created", reg.RoutingKey)
	assert.Equal(t, "journal.account.created", reg.Name)
}
