package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/shortlink-org/bank-saga/logger"
)

var (
	errNilPublisher = errors.New("dlq: publisher is nil")
	errEmptyTopic   = errors.New("dlq: topic is empty")
)

// Publish builds the dead-letter message and forwards it using the provided publisher.
func Publish(ctx context.Context, log logger.Logger, publisher message.Publisher, topic string, event Event) error {
	if publisher == nil {
		return errNilPublisher
	}

	if topic == "" {
		return errEmptyTopic
	}

	msg, err := BuildMessage(event)
	if err != nil {
		return fmt.Errorf("build dlq message: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	msg.SetContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(msg.Metadata))

	if err := publisher.Publish(topic, msg); err != nil {
		log.ErrorWithContext(ctx, "Failed to publish DLQ message",
			slog.String("topic", topic),
			slog.String("reason", event.Reason),
			slog.String("message_id", msg.UUID),
			slog.String("error", err.Error()),
		)

		return fmt.Errorf("publish dlq message: %w", err)
	}

	return nil
}
