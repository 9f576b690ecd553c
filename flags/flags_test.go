package flags

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/config"
)

func TestApplyOverridesOnlyGivenFlags(t *testing.T) {
	fs := []Flag{
		{Name: "bus", Key: "BUS_BACKEND", Usage: "message bus"},
		{Name: "metrics-addr", Key: "METRICS_ADDR", Usage: "monitoring listen address"},
	}

	cfg := config.NewWithValues(map[string]any{"METRICS_ADDR": ":9090"})

	root := &cobra.Command{Use: "bank"}
	Add(root, fs...)

	var ran bool

	child := &cobra.Command{
		Use: "serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			Apply(cmd, cfg, fs...)
			ran = true

			return nil
		},
	}
	root.AddCommand(child)

	root.SetArgs([]string{"serve", "--bus", "kafka"})
	require.NoError(t, root.Execute())
	require.True(t, ran)

	assert.Equal(t, "kafka", cfg.GetString("BUS_BACKEND"))
	assert.Equal(t, ":9090", cfg.GetString("METRICS_ADDR"))
}
