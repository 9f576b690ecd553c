package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/eventsourcing"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/projection"
)

func rebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Replay the journal into a fresh read model",
		Long:  "Replay the journal into a fresh read model. The journal is locked by a running serve, so stop it first.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, cleanup, err := bootstrap(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return readModel(cmd.Context(), log, cfg, func(ctx context.Context, journal *eventsourcing.Journal, projector *projection.Projector) error {
				applied, err := projector.Rebuild(ctx, journal)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "rebuilt read model from %d events (journal at %d)\n", applied, journal.Sequence())

				return nil
			})
		},
	}
}

// readModel opens the journal and the projection store for fn.
func readModel(
	ctx context.Context,
	log logger.Logger,
	cfg *config.Config,
	fn func(ctx context.Context, journal *eventsourcing.Journal, projector *projection.Projector) error,
) (err error) {
	journal, err := eventsourcing.New(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { err = errors.Join(err, journal.Close()) }()

	store, err := projection.NewStore(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("open read model: %w", err)
	}
	defer func() { err = errors.Join(err, store.Close()) }()

	return fn(ctx, journal, projection.New(log, store, journal))
}
