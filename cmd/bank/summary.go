package main

import (
	"context"

	"github.com/segmentio/encoding/json"
	"github.com/spf13/cobra"

	"github.com/shortlink-org/bank-saga/eventsourcing"
	"github.com/shortlink-org/bank-saga/projection"
)

type summaryRow struct {
	ManagerID string `json:"managerId"`
	Positive  string `json:"positive"`
	Negative  string `json:"negative"`
	Clients   int    `json:"clients"`
}

func summaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the per-manager account summaries as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, cleanup, err := bootstrap(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			return readModel(cmd.Context(), log, cfg, func(ctx context.Context, _ *eventsourcing.Journal, projector *projection.Projector) error {
				summaries, err := projector.ManagerSummaries(ctx)
				if err != nil {
					return err
				}

				rows := make([]summaryRow, 0, len(summaries))
				for _, s := range summaries {
					rows = append(rows, summaryRow{
						ManagerID: s.ManagerID,
						Positive:  s.Positive.String(),
						Negative:  s.Negative.String(),
						Clients:   s.Clients,
					})
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")

				return enc.Encode(rows)
			})
		},
	}
}
