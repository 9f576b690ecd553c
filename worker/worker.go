/*
Package worker runs the command side of a bounded context.

A Worker consumes the commands it has handlers for, applies each one
through its handler and publishes exactly one terminal event per command:
the success event with the handler's payload, or the failure event carrying
the reason, kind, status and the original command payload. Handler errors
never reach the bus.

Redelivered commands are answered from a dedup cache keyed by correlation
id and command, so the effect is applied once and the same terminal event
is published again.
*/
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-redis/cache/v9"
	"golang.org/x/sync/singleflight"

	bankcache "github.com/shortlink-org/bank-saga/cache"
	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/cqrs/bus"
	"github.com/shortlink-org/bank-saga/cqrs/handlers"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/cqrs/router"
	"github.com/shortlink-org/bank-saga/failure"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/watermill/dlq"
)

// Handler applies one command and returns the success payload.
type Handler func(ctx context.Context, cmd cqrsmessage.Envelope) (cqrsmessage.Payload, error)

// EventPublisher publishes terminal events; *bus.EventBus implements it.
type EventPublisher interface {
	Publish(ctx context.Context, evt cqrsmessage.Envelope, opts ...bus.PublishOption) error
}

// Outcome is the terminal event produced for a command.
type Outcome struct {
	Payload cqrsmessage.Payload `msgpack:"payload"`
	Type    string              `msgpack:"type"`
}

type Worker struct {
	log    logger.Logger
	events EventPublisher
	dedup  *bankcache.Client

	handlers map[string]Handler
	inflight singleflight.Group

	name string
}

// New builds a worker. dedup may be nil to apply every delivery.
func New(name string, log logger.Logger, events EventPublisher, dedup *bankcache.Client) (*Worker, error) {
	if events == nil {
		return nil, errNilEvents
	}

	return &Worker{
		name:     name,
		log:      log,
		events:   events,
		dedup:    dedup,
		handlers: map[string]Handler{},
	}, nil
}

// Name is the bounded context and the consumer group of the worker.
func (w *Worker) Name() string {
	return w.name
}

// On sets the handler of command.
func (w *Worker) On(command string, h Handler) *Worker {
	w.handlers[command] = h

	return w
}

// Commands lists the commands the worker consumes, sorted.
func (w *Worker) Commands() []string {
	out := make([]string, 0, len(w.handlers))
	for command := range w.handlers {
		out = append(out, command)
	}

	slices.Sort(out)

	return out
}

// Register subscribes the worker to its commands under its own consumer group.
func (w *Worker) Register(r *message.Router, source router.SubscriberSource, namer *cqrsmessage.Namer, marshaler cqrsmessage.Marshaler) error {
	registrations := make([]router.HandlerRegistration, 0, len(w.handlers))
	for _, command := range w.Commands() {
		registrations = append(registrations, router.HandlerRegistration{
			RoutingKey: command,
			Handler:    handlers.NewEnvelopeHandler(w, marshaler),
		})
	}

	return router.Register(r, source, router.RouterConfig{
		Group:    w.name,
		Namer:    namer,
		Handlers: registrations,
	})
}

// Handle applies a delivered command and publishes its terminal event. Only
// publishing errors are returned, so the transport redelivers and the cached
// outcome is published again.
func (w *Worker) Handle(ctx context.Context, cmd cqrsmessage.Envelope) error {
	h, ok := w.handlers[cmd.Type]
	if !ok {
		return dlq.Permanent(fmt.Errorf("%w: %s", errUnknownCommand, cmd.Type))
	}

	if cmd.CorrelationID == "" {
		return dlq.Permanent(fmt.Errorf("%w: %s", errMissingCorrelation, cmd.Type))
	}

	if _, ok := contract.SuccessEvents[cmd.Type]; !ok {
		return dlq.Permanent(fmt.Errorf("%w: %s", errMissingSuccess, cmd.Type))
	}

	key := w.dedupKey(cmd)
	log := logger.Bind(w.log, cmd.CorrelationID, map[string]string{"worker": w.name, "routing_key": cmd.Type})

	res, err, shared := w.inflight.Do(key, func() (any, error) {
		return w.resolve(ctx, log, key, cmd, h), nil
	})
	if err != nil {
		return err
	}

	if shared {
		log.DebugWithContext(ctx, "concurrent duplicate command collapsed")
	}

	outcome, _ := res.(Outcome)

	evt := cqrsmessage.NewEvent(outcome.Type, cmd.CorrelationID, outcome.Payload)

	var opts []bus.PublishOption
	if kind := cmd.Metadata[cqrsmessage.MetadataSaga]; kind != "" {
		opts = append(opts, bus.WithMetadata(cqrsmessage.MetadataSaga, kind))
	}

	if err := w.events.Publish(ctx, evt, opts...); err != nil {
		return fmt.Errorf("publish %s: %w", outcome.Type, err)
	}

	return nil
}

// resolve returns the cached outcome of a command seen before, or applies it.
func (w *Worker) resolve(ctx context.Context, log logger.Logger, key string, cmd cqrsmessage.Envelope, h Handler) Outcome {
	if w.dedup != nil {
		var cached Outcome

		err := w.dedup.Get(ctx, key, &cached)
		switch {
		case err == nil:
			log.InfoWithContext(ctx, "duplicate command, republishing terminal event",
				slog.String("event", cached.Type),
			)

			return cached
		case !errors.Is(err, cache.ErrCacheMiss):
			log.WarnWithContext(ctx, "dedup cache unavailable", slog.Any("error", err))
		}
	}

	outcome := w.apply(ctx, log, cmd, h)

	if w.dedup != nil {
		err := w.dedup.Set(&cache.Item{
			Ctx:   ctx,
			Key:   key,
			Value: outcome,
			TTL:   w.dedup.TTL(),
		})
		if err != nil {
			log.WarnWithContext(ctx, "failed to cache command outcome", slog.Any("error", err))
		}
	}

	return outcome
}

func (w *Worker) apply(ctx context.Context, log logger.Logger, cmd cqrsmessage.Envelope, h Handler) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = failed(cmd, failure.Internal(cmd.Type, fmt.Errorf("panic: %v", r)))
		}
	}()

	payload, err := h(ctx, cmd)
	if err != nil {
		log.WarnWithContext(ctx, "command failed",
			slog.String("kind", string(failure.KindOf(err))),
			slog.Any("error", err),
		)

		return failed(cmd, err)
	}

	log.InfoWithContext(ctx, "command applied")

	if payload == nil {
		payload = cqrsmessage.Payload{}
	}

	return Outcome{Type: contract.SuccessEvents[cmd.Type], Payload: payload}
}

func (w *Worker) dedupKey(cmd cqrsmessage.Envelope) string {
	return w.name + ":" + cmd.CorrelationID + ":" + cmd.Type
}

func failed(cmd cqrsmessage.Envelope, err error) Outcome {
	kind := failure.KindOf(err)

	return Outcome{
		Type: cqrsmessage.FailureKey(cmd.Type),
		Payload: cqrsmessage.MustPayload(contract.Failure{
			Reason:  err.Error(),
			Kind:    string(kind),
			Status:  failure.StatusCode(kind),
			Payload: cmd.Payload,
		}),
	}
}

// Decode decodes the command payload into T. Malformed payloads are validation failures.
func Decode[T any](cmd cqrsmessage.Envelope) (T, error) {
	var v T
	if err := cmd.Payload.Decode(&v); err != nil {
		return v, failure.Validation(cmd.Type, "malformed payload: %v", err)
	}

	return v, nil
}
