package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)

	os.Exit(m.Run())
}

func TestDefaultsAndOverrides(t *testing.T) {
	cfg := NewWithValues(map[string]any{
		"SAGA_TIMEOUT": "5s",
	})

	cfg.SetDefault("SAGA_TIMEOUT", "30s")
	cfg.SetDefault("WORKER_DEDUP_SIZE", 1000)

	require.Equal(t, 5*time.Second, cfg.GetDuration("SAGA_TIMEOUT"))
	require.Equal(t, 1000, cfg.GetInt("WORKER_DEDUP_SIZE"))
}

func TestEnvironmentIsConsulted(t *testing.T) {
	t.Setenv("BANK_TEST_BROKERS", "a:9092, b:9092,,c:9092")

	cfg := NewWithValues(nil)

	require.Equal(t, []string{"a:9092", "b:9092", "c:9092"}, cfg.GetStringSlice("BANK_TEST_BROKERS"))
}

func TestNewWithoutDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	cfg.SetDefault("SERVICE_NAME", "bank")
	require.Equal(t, "bank", cfg.GetString("SERVICE_NAME"))
}
