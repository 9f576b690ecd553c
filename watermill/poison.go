package watermill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/watermill/dlq"
)

type originalMessageCtxKey struct{}

// NewPoisonMiddleware routes messages whose handler failed permanently
// (see dlq.Permanent) to the dead-letter topic and acks them. Other errors
// are returned unchanged so retry and redelivery still apply.
func NewPoisonMiddleware(log logger.Logger, publisher message.Publisher, dlqTopic, serviceName string) (message.HandlerMiddleware, error) {
	if publisher == nil {
		return nil, fmt.Errorf("watermill: poison middleware requires a publisher")
	}

	if dlqTopic == "" {
		dlqTopic = defaultDLQTopic
	}

	wrapped := &poisonPublisher{
		log:         log,
		publisher:   publisher,
		serviceName: serviceName,
	}

	poisonMW, err := middleware.PoisonQueueWithFilter(wrapped, dlqTopic, dlq.IsPermanent)
	if err != nil {
		return nil, fmt.Errorf("watermill: poison middleware init failed: %w", err)
	}

	return func(h message.HandlerFunc) message.HandlerFunc {
		return poisonMW(func(msg *message.Message) ([]*message.Message, error) {
			ctx := ensureContext(msg.Context())
			ctx = context.WithValue(ctx, originalMessageCtxKey{}, snapshotMessage(msg))
			msg.SetContext(ctx)

			return h(msg)
		})
	}, nil
}

func snapshotMessage(msg *message.Message) *message.Message {
	cloned := message.NewMessage(msg.UUID, append([]byte(nil), msg.Payload...))
	for k, v := range msg.Metadata {
		cloned.Metadata.Set(k, v)
	}

	cloned.SetContext(msg.Context())

	return cloned
}

// poisonPublisher reshapes watermill's poisoned copy into a dlq.Event.
type poisonPublisher struct {
	log         logger.Logger
	publisher   message.Publisher
	serviceName string
}

func (p *poisonPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, poisoned := range msgs {
		ctx := ensureContext(poisoned.Context())

		original, _ := ctx.Value(originalMessageCtxKey{}).(*message.Message)
		if original == nil {
			original = snapshotMessage(poisoned)
		}

		event := dlq.Event{
			FailedAt:      time.Now().UTC(),
			Reason:        poisoned.Metadata.Get(middleware.ReasonForPoisonedKey),
			SourceTopic:   poisoned.Metadata.Get(middleware.PoisonedTopicKey),
			SourceHandler: poisoned.Metadata.Get(middleware.PoisonedHandlerKey),
			OriginalMsg:   original,
			ServiceName:   p.serviceName,
		}

		if event.Reason == "" {
			event.Reason = "handler returned error"
		}

		if err := dlq.Publish(ctx, p.log, p.publisher, topic, event); err != nil {
			return err
		}

		p.log.WarnWithContext(ctx, "Message moved to dead-letter topic",
			slog.String("topic", topic),
			slog.String("source_topic", event.SourceTopic),
			slog.String("reason", event.Reason),
		)
	}

	return nil
}

func (p *poisonPublisher) Close() error {
	return nil
}
