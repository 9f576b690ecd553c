package saga

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/logger"
)

var errAlreadyAwaiting = errors.New("saga: correlation id already awaits an event")

// Delivery is the outcome of offering an event to the Awaiter.
type Delivery int

const (
	// Accepted: the event resolved a pending wait.
	Accepted Delivery = iota
	// Duplicate: the same terminal event was already received.
	Duplicate
	// Conflicting: the other terminal event was received first and is kept.
	Conflicting
	// Unexpected: the correlation id is known but nothing waits for this event.
	Unexpected
	// Unknown: no saga in this process owns the correlation id.
	Unknown
)

func (d Delivery) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Conflicting:
		return "conflicting"
	case Unexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Wait is a pending wait for one of two terminal events.
type Wait struct {
	ch      chan message.Envelope
	command string
	success string
	failure string
}

// C yields the first terminal event.
func (w *Wait) C() <-chan message.Envelope { return w.ch }

// Awaiter routes terminal events to the saga instance waiting on their
// correlation id. A saga registers its wait before issuing the command, so
// an event can never arrive ahead of its waiter.
type Awaiter struct {
	log logger.Logger

	mu      sync.Mutex
	waiting map[string]*Wait
	// first terminal event per correlation id and command
	seen map[string]map[string]string
	// commandOf maps a terminal event onto its command
	commandOf func(eventKey string) string
}

func NewAwaiter(log logger.Logger, commandOf func(eventKey string) string) *Awaiter {
	return &Awaiter{
		log:       log,
		waiting:   map[string]*Wait{},
		seen:      map[string]map[string]string{},
		commandOf: commandOf,
	}
}

// Expect registers a wait for the success or failure event of command.
func (a *Awaiter) Expect(correlationID, command, success, failure string) (*Wait, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.waiting[correlationID]; ok {
		return nil, errAlreadyAwaiting
	}

	if _, ok := a.seen[correlationID]; !ok {
		a.seen[correlationID] = map[string]string{}
	}

	w := &Wait{
		ch:      make(chan message.Envelope, 1),
		command: command,
		success: success,
		failure: failure,
	}
	a.waiting[correlationID] = w

	return w, nil
}

// Cancel drops a wait that was not resolved, e.g. after a timeout.
func (a *Awaiter) Cancel(correlationID string, w *Wait) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.waiting[correlationID] == w {
		delete(a.waiting, correlationID)
	}
}

// Forget releases all state of a finished saga.
func (a *Awaiter) Forget(correlationID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.waiting, correlationID)
	delete(a.seen, correlationID)
}

// Deliver offers a terminal event. Only the first terminal event per command
// is accepted; anything else is logged and dropped.
func (a *Awaiter) Deliver(env message.Envelope) Delivery {
	a.mu.Lock()
	defer a.mu.Unlock()

	corr := env.CorrelationID
	seen, known := a.seen[corr]

	if w, ok := a.waiting[corr]; ok && (env.Type == w.success || env.Type == w.failure) {
		delete(a.waiting, corr)
		seen[w.command] = env.Type
		w.ch <- env

		return Accepted
	}

	if !known {
		return Unknown
	}

	command := env.Type
	if a.commandOf != nil {
		command = a.commandOf(env.Type)
	}

	first, ok := seen[command]

	switch {
	case ok && first == env.Type:
		a.log.Warn("duplicate terminal event dropped",
			slog.String("correlation_id", corr),
			slog.String("routing_key", env.Type),
		)

		return Duplicate
	case ok:
		a.log.Warn("conflicting terminal event dropped, first one kept",
			slog.String("correlation_id", corr),
			slog.String("routing_key", env.Type),
			slog.String("kept", first),
		)

		return Conflicting
	default:
		a.log.Warn("unexpected event for saga dropped",
			slog.String("correlation_id", corr),
			slog.String("routing_key", env.Type),
		)

		return Unexpected
	}
}

// Pending returns the number of sagas currently awaiting an event.
func (a *Awaiter) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.waiting)
}
