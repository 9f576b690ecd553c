package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
	"github.com/shortlink-org/bank-saga/worker/auth"
)

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer

	root := rootCommand()
	root.SetOut(&out)
	root.SetArgs(args)

	require.NoError(t, root.Execute())

	return out.String()
}

func TestRebuildAndSummaryOnEmptyStores(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOG_LEVEL", "0")

	storeFlags := []string{
		"--sqlite-dir", dir,
		"--journal", filepath.Join(dir, "journal"),
	}

	out := run(t, append([]string{"rebuild"}, storeFlags...)...)
	assert.Equal(t, "rebuilt read model from 0 events (journal at 0)\n", out)

	out = run(t, append([]string{"summary"}, storeFlags...)...)
	assert.JSONEq(t, `[]`, out)
}

func TestPurgeStopsWithContext(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewWithValues(map[string]any{"STORE_SQLITE_DIR": dir})

	store, err := auth.NewStore(context.Background(), logger.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, purgeRevokedTokens(ctx, auth.NewService(logger.NewNop(), cfg, store), 5*time.Millisecond))
}
