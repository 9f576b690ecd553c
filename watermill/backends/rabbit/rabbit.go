// Package rabbit is the RabbitMQ backend. Topics are durable fanout exchanges;
// every consumer group binds its own queue "<topic>_<suffix>.<group>".
package rabbit

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
	bankwatermill "github.com/shortlink-org/bank-saga/watermill"
)

var (
	_ bankwatermill.Backend         = (*Backend)(nil)
	_ bankwatermill.GroupSubscriber = (*Backend)(nil)
)

type Backend struct {
	cfg      Config
	wmLogger watermill.LoggerAdapter

	publisher  *amqp.Publisher
	subscriber *amqp.Subscriber

	mu     sync.Mutex
	groups map[string]*amqp.Subscriber
}

func New(_ context.Context, log logger.Logger, cfg *config.Config) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if log == nil {
		return nil, errors.New("logger is nil")
	}

	settings := Load(cfg)
	wmLogger := bankwatermill.NewWatermillLogger(log)

	publisher, err := amqp.NewPublisher(settings.pubSub(settings.Queue), wmLogger)
	if err != nil {
		return nil, errors.Wrap(err, "create amqp publisher")
	}

	subscriber, err := amqp.NewSubscriber(settings.pubSub(settings.Queue), wmLogger)
	if err != nil {
		_ = publisher.Close()

		return nil, errors.Wrap(err, "create amqp subscriber")
	}

	return &Backend{
		cfg:        settings,
		wmLogger:   wmLogger,
		publisher:  publisher,
		subscriber: subscriber,
		groups:     map[string]*amqp.Subscriber{},
	}, nil
}

func (b *Backend) Publisher() message.Publisher   { return b.publisher }
func (b *Backend) Subscriber() message.Subscriber { return b.subscriber }

// SubscriberForGroup returns a subscriber whose queues belong to group.
func (b *Backend) SubscriberForGroup(group string) (message.Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.groups[group]; ok {
		return sub, nil
	}

	sub, err := amqp.NewSubscriber(b.cfg.pubSub(b.cfg.Queue+"."+group), b.wmLogger)
	if err != nil {
		return nil, errors.Wrapf(err, "create amqp subscriber for group %s", group)
	}

	b.groups[group] = sub

	return sub, nil
}

func (b *Backend) Close() error {
	var errs *multierror.Error

	if err := b.publisher.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close publisher: %w", err))
	}

	if err := b.subscriber.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("close subscriber: %w", err))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for group, sub := range b.groups {
		if err := sub.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close subscriber %s: %w", group, err))
		}
	}

	return errs.ErrorOrNil()
}
