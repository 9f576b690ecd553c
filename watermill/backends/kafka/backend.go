package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
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

// Backend aggregates Kafka publisher and per-group subscribers.
type Backend struct {
	settings *backendSettings
	wmLogger watermill.LoggerAdapter

	publisher  *kafka.Publisher
	subscriber *kafka.Subscriber

	mu     sync.Mutex
	groups map[string]*kafka.Subscriber
}

// New wires Kafka publisher and the default-group subscriber using config-driven defaults.
func New(_ context.Context, log logger.Logger, cfg *config.Config) (*Backend, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	if log == nil {
		return nil, errors.New("logger is nil")
	}

	settings, err := loadBackendSettings(cfg)
	if err != nil {
		return nil, err
	}

	wmLogger := bankwatermill.NewWatermillLogger(log)

	publisher, err := kafka.NewPublisher(settings.publisherConfig(), wmLogger)
	if err != nil {
		return nil, errors.Wrap(err, "create kafka publisher")
	}

	subscriber, err := kafka.NewSubscriber(settings.subscriberConfig(settings.consumerGroup), wmLogger)
	if err != nil {
		_ = publisher.Close()

		return nil, errors.Wrap(err, "create kafka subscriber")
	}

	return &Backend{
		settings:   settings,
		wmLogger:   wmLogger,
		publisher:  publisher,
		subscriber: subscriber,
		groups:     map[string]*kafka.Subscriber{},
	}, nil
}

// Publisher returns the configured Kafka publisher.
func (b *Backend) Publisher() message.Publisher {
	return b.publisher
}

// Subscriber returns the subscriber of the configured consumer group.
func (b *Backend) Subscriber() message.Subscriber {
	return b.subscriber
}

// SubscriberForGroup returns a subscriber in consumer group "<base>.<group>".
func (b *Backend) SubscriberForGroup(group string) (message.Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.groups[group]; ok {
		return sub, nil
	}

	name := b.settings.consumerGroup + "." + group

	sub, err := kafka.NewSubscriber(b.settings.subscriberConfig(name), b.wmLogger)
	if err != nil {
		return nil, errors.Wrapf(err, "create kafka subscriber for group %s", name)
	}

	b.groups[group] = sub

	return sub, nil
}

// Close stops publisher and subscribers, joining all errors.
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
