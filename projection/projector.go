/*
Package projection maintains the read model of accounts and transactions.

The projector consumes account and transaction events and keeps one
AccountView per client and one TransactionView per transaction. Every
projection is an idempotent upsert guarded by the account version, so
redelivered, replayed and reordered events leave the read model at the
latest state it has seen.
*/
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cespare/xxhash/v2"

	"github.com/shortlink-org/bank-saga/contract"
	"github.com/shortlink-org/bank-saga/cqrs/handlers"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/cqrs/router"
	"github.com/shortlink-org/bank-saga/eventsourcing"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/watermill/dlq"
)

// Group is the consumer group the projector subscribes in.
const Group = "projection"

// stripes is the number of per-account locks.
const stripes = 64

var errMalformed = errors.New("malformed event")

// Source replays journaled events in order.
type Source interface {
	Replay(ctx context.Context, from uint64, fn func(ctx context.Context, entry eventsourcing.Entry) error) error
}

// Recorder appends events to the log Rebuild replays.
type Recorder interface {
	Append(ctx context.Context, env cqrsmessage.Envelope) (uint64, error)
}

// Projector applies events to the read model.
type Projector struct {
	store   *Store
	log     logger.Logger
	journal Recorder

	// rebuild is held shared by projections and queries, exclusively by Rebuild.
	rebuild sync.RWMutex
	locks   [stripes]sync.Mutex
}

// New returns a projector over store. Every live event is appended to journal
// before it is projected, so a Rebuild from journal keeps it. A nil journal
// projects without recording.
func New(log logger.Logger, store *Store, journal Recorder) *Projector {
	return &Projector{store: store, log: log, journal: journal}
}

// EventKeys returns the routing keys the projector consumes.
func (p *Projector) EventKeys() []string {
	return []string{
		contract.AccountCreated,
		contract.AccountUpdated,
		contract.AccountManagerAssigned,
		contract.AccountManagerUnassigned,
		contract.TransactionRecorded,
	}
}

// Register subscribes the projector's typed handlers in Group.
func (p *Projector) Register(r *message.Router, source router.SubscriberSource, namer *cqrsmessage.Namer, marshaler cqrsmessage.Marshaler) error {
	onAccount := handlers.NewEventHandler[contract.Account](
		handlers.EventHandlerFunc[contract.Account](func(ctx context.Context, evt handlers.Event[contract.Account]) error {
			return p.live(ctx, func(ctx context.Context) error { return p.projectAccount(ctx, evt.Body) })
		}), marshaler)

	onManager := handlers.NewEventHandler[contract.ManagerAccounts](
		handlers.EventHandlerFunc[contract.ManagerAccounts](func(ctx context.Context, evt handlers.Event[contract.ManagerAccounts]) error {
			return p.live(ctx, func(ctx context.Context) error { return p.projectManagerAccounts(ctx, evt.Body) })
		}), marshaler)

	onTransaction := handlers.NewEventHandler[contract.Transaction](
		handlers.EventHandlerFunc[contract.Transaction](func(ctx context.Context, evt handlers.Event[contract.Transaction]) error {
			return p.live(ctx, func(ctx context.Context) error {
				return p.projectTransaction(ctx, evt.Envelope.CorrelationID, evt.Body)
			})
		}), marshaler)

	return router.Register(r, source, router.RouterConfig{
		Group: Group,
		Namer: namer,
		Handlers: []router.HandlerRegistration{
			{RoutingKey: contract.AccountCreated, Handler: onAccount},
			{RoutingKey: contract.AccountUpdated, Handler: onAccount},
			{RoutingKey: contract.AccountManagerAssigned, Handler: onManager},
			{RoutingKey: contract.AccountManagerUnassigned, Handler: onManager},
			{RoutingKey: contract.TransactionRecorded, Handler: onTransaction},
		},
	})
}

// Handle projects one event. Events the projector does not consume are ignored.
func (p *Projector) Handle(ctx context.Context, env cqrsmessage.Envelope) error {
	if !slices.Contains(p.EventKeys(), env.Type) {
		return nil
	}

	return p.live(ctx, env, func(ctx context.Context) error { return p.apply(ctx, env) })
}

// Rebuild clears the read model and replays source into it. Live projections
// and queries wait until it is done. Rebuilding from the journal the projector
// records to loses nothing it projected live.
func (p *Projector) Rebuild(ctx context.Context, source Source) (int, error) {
	p.rebuild.Lock()
	defer p.rebuild.Unlock()

	applied := 0

	err := p.store.Do(ctx, func(ctx context.Context) error {
		if err := p.store.Clear(ctx); err != nil {
			return err
		}

		return source.Replay(ctx, 0, func(ctx context.Context, entry eventsourcing.Entry) error {
			err := p.apply(ctx, entry.Envelope())
			if errors.Is(err, errMalformed) {
				p.log.WarnWithContext(ctx, "malformed journal entry skipped",
					slog.Uint64("sequence", entry.Sequence),
					slog.String("routing_key", entry.Type),
					slog.String("error", err.Error()),
				)

				return nil
			}

			if err == nil && slices.Contains(p.EventKeys(), entry.Type) {
				applied++
			}

			return err
		})
	})
	if err != nil {
		return 0, fmt.Errorf("rebuild read model: %w", err)
	}

	p.log.InfoWithContext(ctx, "read model rebuilt", slog.Int("events", applied))

	return applied, nil
}

// live records env and runs fn as a projection concurrent with other
// projections. Malformed events are permanent failures.
func (p *Projector) live(ctx context.Context, env cqrsmessage.Envelope, fn func(ctx context.Context) error) error {
	p.rebuild.RLock()
	defer p.rebuild.RUnlock()

	if p.journal != nil {
		if _, err := p.journal.Append(ctx, env); err != nil {
			return fmt.Errorf("journal %s: %w", env.Type, err)
		}
	}

	err := fn(ctx)
	if errors.Is(err, errMalformed) {
		return dlq.Permanent(err)
	}

	return err
}

func (p *Projector) apply(ctx context.Context, env cqrsmessage.Envelope) error {
	switch env.Type {
	case contract.AccountCreated, contract.AccountUpdated:
		var acc contract.Account
		if err := env.Payload.Decode(&acc); err != nil {
			return fmt.Errorf("%w: %s: %w", errMalformed, env.Type, err)
		}

		return p.projectAccount(ctx, acc)
	case contract.AccountManagerAssigned, contract.AccountManagerUnassigned:
		var moved contract.ManagerAccounts
		if err := env.Payload.Decode(&moved); err != nil {
			return fmt.Errorf("%w: %s: %w", errMalformed, env.Type, err)
		}

		return p.projectManagerAccounts(ctx, moved)
	case contract.TransactionRecorded:
		var t contract.Transaction
		if err := env.Payload.Decode(&t); err != nil {
			return fmt.Errorf("%w: %s: %w", errMalformed, env.Type, err)
		}

		return p.projectTransaction(ctx, env.CorrelationID, t)
	default:
		return nil
	}
}

func (p *Projector) projectAccount(ctx context.Context, acc contract.Account) error {
	if acc.ClientID == "" {
		return fmt.Errorf("%w: account without clientId", errMalformed)
	}

	unlock := p.lock(acc.ClientID)
	defer unlock()

	return p.store.Do(ctx, func(ctx context.Context) error {
		return p.store.UpsertAccount(ctx, acc)
	})
}

func (p *Projector) projectManagerAccounts(ctx context.Context, moved contract.ManagerAccounts) error {
	for _, acc := range moved.Accounts {
		if err := p.projectAccount(ctx, acc); err != nil {
			return err
		}
	}

	return nil
}

// projectTransaction records t against its origin account and moves the
// balances of both parties, unless a view already holds a later version. A
// transaction for an account that has no view yet is dropped.
func (p *Projector) projectTransaction(ctx context.Context, correlationID string, t contract.Transaction) error {
	if t.ID == "" || t.ClientID == "" {
		return fmt.Errorf("%w: transaction without id or clientId", errMalformed)
	}

	unlock := p.lock(t.ClientID, t.DestinationID)
	defer unlock()

	return p.store.Do(ctx, func(ctx context.Context) error {
		origin, err := p.store.Account(ctx, t.ClientID)
		if errors.Is(err, errNotFound) {
			p.log.WarnWithContext(ctx, "transaction for an account without a view dropped",
				slog.String("correlation_id", correlationID),
				slog.String("transaction_id", t.ID),
				slog.String("client_id", t.ClientID),
			)

			return nil
		}

		if err != nil {
			return err
		}

		inserted, err := p.store.InsertTransaction(ctx, TransactionView{
			At:                  t.At,
			Amount:              t.Amount,
			Balance:             t.Balance,
			DestinationBalance:  t.DestinationBalance,
			ID:                  t.ID,
			AccountID:           origin.ID,
			Type:                t.Type,
			OriginClientID:      t.ClientID,
			DestinationClientID: t.DestinationID,
		})
		if err != nil || !inserted {
			return err
		}

		if err := p.store.SetBalance(ctx, t.ClientID, t.Balance, t.Version); err != nil {
			return err
		}

		if t.DestinationID != "" && t.DestinationBalance != nil {
			return p.store.SetBalance(ctx, t.DestinationID, *t.DestinationBalance, t.DestinationVersion)
		}

		return nil
	})
}

// lock takes the stripes of every non-empty key in index order.
func (p *Projector) lock(keys ...string) func() {
	var held [2]int

	n := 0

	for _, k := range keys {
		if k == "" {
			continue
		}

		idx := int(xxhash.Sum64String(k) % stripes)
		if n > 0 && held[0] == idx {
			continue
		}

		held[n] = idx
		n++
	}

	if n == 2 && held[1] < held[0] {
		held[0], held[1] = held[1], held[0]
	}

	for i := range n {
		p.locks[held[i]].Lock()
	}

	return func() {
		for i := n - 1; i >= 0; i-- {
			p.locks[held[i]].Unlock()
		}
	}
}
