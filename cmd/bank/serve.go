package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shortlink-org/bank-saga/app"
	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/observability/flight"
	"github.com/shortlink-org/bank-saga/observability/metrics"
	"github.com/shortlink-org/bank-saga/observability/tracing"
	"github.com/shortlink-org/bank-saga/worker/auth"
)

var errRouterNotRunning = errors.New("router not running")

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workers, the coordinator, the journal and the projector",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, cleanup, err := bootstrap(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return serve(ctx, log, cfg)
		},
	}
}

func serve(ctx context.Context, log logger.Logger, cfg *config.Config) (err error) {
	cfg.SetDefault("AUTH_PURGE_INTERVAL", "1h")

	recorder, err := flight.New(cfg)
	if err != nil {
		return err
	}
	defer recorder.Stop()

	res := tracing.NewResource(cfg)
	tracerProvider := tracing.New(cfg, res)

	monitoring, err := metrics.New(ctx, log, cfg, res, tracerProvider)
	if err != nil {
		return err
	}

	defer func() {
		shutdownCtx := context.WithoutCancel(ctx)
		err = errors.Join(err, monitoring.Shutdown(shutdownCtx), tracing.Shutdown(shutdownCtx, tracerProvider))
	}()

	backend, err := app.NewBackend(ctx, log, cfg)
	if err != nil {
		return err
	}

	bank, err := app.New(ctx, log, cfg, backend, monitoring.Metrics, tracerProvider)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, bank.Close())
	}()

	monitoring.AddReadinessCheck("router", func() error {
		select {
		case <-bank.Client.Running():
			return nil
		default:
			return errRouterNotRunning
		}
	})

	if recorder != nil {
		monitoring.Handler.Post("/debug/flight", func(w http.ResponseWriter, r *http.Request) {
			path, err := recorder.Dump("manual")
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)

				return
			}

			log.InfoWithContext(r.Context(), "flight trace written", slog.String("path", path))
			_, _ = w.Write([]byte(path + "\n"))
		})
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return bank.Run(gctx) })
	g.Go(func() error { return monitoring.Serve(gctx) })
	g.Go(func() error { return purgeRevokedTokens(gctx, bank.Auth, cfg.GetDuration("AUTH_PURGE_INTERVAL")) })

	log.Info("bank serving", slog.String("bus", cfg.GetString("BUS_BACKEND")))

	if err := g.Wait(); err != nil {
		if path, dumpErr := recorder.Dump("serve"); dumpErr == nil {
			log.Error("flight trace written", slog.String("path", path))
		}

		return err
	}

	log.Info("bank stopped")

	return nil
}

// purgeRevokedTokens drops expired revocations every interval until ctx is done.
func purgeRevokedTokens(ctx context.Context, tokens *auth.Service, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := tokens.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
