/*
Package app wires the bank: the message router, the four domain workers,
the journal, the read-model projector and the saga coordinator.
*/
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	bankcache "github.com/shortlink-org/bank-saga/cache"
	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/coordinator"
	"github.com/shortlink-org/bank-saga/cqrs/bus"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
	"github.com/shortlink-org/bank-saga/cqrs/router"
	"github.com/shortlink-org/bank-saga/eventsourcing"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/projection"
	"github.com/shortlink-org/bank-saga/saga/boltstore"
	bankwatermill "github.com/shortlink-org/bank-saga/watermill"
	"github.com/shortlink-org/bank-saga/worker"
	"github.com/shortlink-org/bank-saga/worker/account"
	"github.com/shortlink-org/bank-saga/worker/auth"
	"github.com/shortlink-org/bank-saga/worker/client"
	"github.com/shortlink-org/bank-saga/worker/manager"
)

// App is a running bank. Everything is registered on one router.
type App struct {
	Client      *bankwatermill.Client
	Commands    *bus.CommandBus
	Events      *bus.EventBus
	Coordinator *coordinator.Coordinator
	Projector   *projection.Projector
	Journal     *eventsourcing.Journal
	Accounts    *account.Service
	Auth        *auth.Service

	closers []io.Closer
}

// registrar is a component that subscribes its handlers on the router.
type registrar interface {
	Register(r *message.Router, source router.SubscriberSource, namer *cqrsmessage.Namer, marshaler cqrsmessage.Marshaler) error
}

// New builds the bank on backend. On error everything opened so far is closed.
func New(
	ctx context.Context,
	log logger.Logger,
	cfg *config.Config,
	backend bankwatermill.Backend,
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
) (_ *App, err error) {
	cfg.SetDefault("SERVICE_NAME", "bank")
	cfg.SetDefault("BUS_TOPIC_PREFIX", "bank")
	cfg.SetDefault("ACCOUNT_MANAGERS", "") // id:cpf pairs seeded into the assignment pool

	a := &App{}

	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Client, err = bankwatermill.New(ctx, log, cfg, backend, meterProvider, tracerProvider)
	if err != nil {
		return nil, err
	}

	service := cfg.GetString("SERVICE_NAME")
	namer := cqrsmessage.NewNamer(cfg.GetString("BUS_TOPIC_PREFIX"), service)
	marshaler := cqrsmessage.NewJSONMarshaler(service)

	a.Commands = bus.NewCommandBus(a.Client.Publisher, marshaler, namer)
	a.Events = bus.NewEventBus(a.Client.Publisher, marshaler, namer)

	dedup, err := bankcache.New(ctx, log, cfg, "WORKER_DEDUP")
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dedup)

	workers, err := a.workers(ctx, log, cfg, dedup)
	if err != nil {
		return nil, err
	}

	if err := a.seedManagers(ctx, cfg.GetStringSlice("ACCOUNT_MANAGERS")); err != nil {
		return nil, err
	}

	a.Journal, err = eventsourcing.New(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Journal)

	readModel, err := projection.NewStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, readModel)
	a.Projector = projection.New(log, readModel, a.Journal)
	a.Journal.Skip(a.Projector.EventKeys()...)

	sagas, err := boltstore.New(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sagas)

	a.Coordinator, err = coordinator.New(log, cfg, a.Commands, sagas, tracerProvider)
	if err != nil {
		return nil, err
	}

	components := make([]registrar, 0, len(workers)+3) //nolint:mnd // journal, projector, coordinator
	for _, w := range workers {
		components = append(components, w)
	}
	components = append(components, a.Journal, a.Projector, a.Coordinator)

	for _, component := range components {
		if err := component.Register(a.Client.Router, a.Client, namer, marshaler); err != nil {
			return nil, fmt.Errorf("register %T: %w", component, err)
		}
	}

	abandoned, err := a.Coordinator.Recover(ctx)
	if err != nil {
		return nil, err
	}

	log.Info("bank wired",
		slog.Int("workers", len(workers)),
		slog.Int("abandoned_sagas", len(abandoned)),
		slog.String("topic_prefix", cfg.GetString("BUS_TOPIC_PREFIX")),
	)

	return a, nil
}

func (a *App) workers(ctx context.Context, log logger.Logger, cfg *config.Config, dedup *bankcache.Client) ([]*worker.Worker, error) {
	accountStore, err := account.NewStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, accountStore)
	a.Accounts = account.NewService(accountStore)

	clientStore, err := client.NewStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, clientStore)

	managerStore, err := manager.NewStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, managerStore)

	authStore, err := auth.NewStore(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, authStore)
	a.Auth = auth.NewService(log, cfg, authStore)

	attach := map[string]func(*worker.Worker){
		"account": a.Accounts.Attach,
		"client":  client.NewService(clientStore).Attach,
		"manager": manager.NewService(log, managerStore).Attach,
		"auth":    a.Auth.Attach,
	}

	names := make([]string, 0, len(attach))
	for name := range attach {
		names = append(names, name)
	}
	slices.Sort(names)

	workers := make([]*worker.Worker, 0, len(names))

	for _, name := range names {
		w, err := worker.New(name, log, a.Events, dedup)
		if err != nil {
			return nil, err
		}

		attach[name](w)
		workers = append(workers, w)
	}

	return workers, nil
}

// seedManagers adds "id:cpf" pairs to the account worker's manager pool.
func (a *App) seedManagers(ctx context.Context, pairs []string) error {
	for _, pair := range pairs {
		id, cpf, ok := strings.Cut(pair, ":")
		if !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(cpf) == "" {
			return fmt.Errorf("%w: %q", errManagerSeed, pair)
		}

		if err := a.Accounts.SeedManager(ctx, strings.TrimSpace(id), strings.TrimSpace(cpf)); err != nil {
			return fmt.Errorf("seed manager %s: %w", id, err)
		}
	}

	return nil
}

// Run routes messages until ctx is done.
func (a *App) Run(ctx context.Context) error {
	return a.Client.Run(ctx)
}

// Rebuild replays the journal into the read model.
func (a *App) Rebuild(ctx context.Context) (int, error) {
	return a.Projector.Rebuild(ctx, a.Journal)
}

// Close stops the router, then closes the stores in reverse opening order.
func (a *App) Close() error {
	var errs *multierror.Error

	if a.Client != nil {
		if err := a.Client.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %T: %w", a.closers[i], err))
		}
	}

	a.closers = nil

	return errs.ErrorOrNil()
}
