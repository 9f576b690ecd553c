/*
Bank runs the saga-coordinated bank.

	bank serve     route commands and events until SIGINT or SIGTERM
	bank rebuild   replay the journal into the read model (serve must be stopped)
	bank summary   print the per-manager account summaries from the read model
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/flags"
	"github.com/shortlink-org/bank-saga/logger"
)

var commonFlags = []flags.Flag{
	{Name: "bus", Key: "BUS_BACKEND", Usage: "message bus: gochannel, kafka or amqp"},
	{Name: "sqlite-dir", Key: "STORE_SQLITE_DIR", Usage: "directory of the worker and read-model databases"},
	{Name: "journal", Key: "JOURNAL_LEVELDB_PATH", Usage: "directory of the event journal"},
	{Name: "saga-store", Key: "SAGA_STORE_PATH", Usage: "saga state file"},
	{Name: "metrics-addr", Key: "METRICS_ADDR", Usage: "monitoring listen address"},
	{Name: "log-level", Key: "LOG_LEVEL", Usage: "0 error, 1 warn, 2 info, 3 debug"},
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "bank",
		Short:         "Saga-coordinated bank",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags.Add(root, commonFlags...)
	root.AddCommand(serveCommand(), rebuildCommand(), summaryCommand())

	return root
}

// bootstrap loads the configuration with command-line overrides and builds
// the logger.
func bootstrap(ctx context.Context, cmd *cobra.Command) (*config.Config, logger.Logger, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	flags.Apply(cmd, cfg, commonFlags...)
	cfg.SetDefault("SERVICE_NAME", "bank")

	log, cleanup, err := logger.NewDefault(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	return cfg, log, cleanup, nil
}
