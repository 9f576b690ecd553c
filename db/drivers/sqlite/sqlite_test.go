package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shortlink-org/bank-saga/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

func TestSQLite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	store := New(config.NewWithValues(map[string]any{"STORE_SQLITE_DIR": dir}), "projection")

	require.NoError(t, store.Init(ctx))
	require.Equal(t, filepath.Join(dir, "projection.db"), store.config.Path)

	conn, ok := store.GetConn().(*sql.DB)
	require.True(t, ok)

	var mode string
	require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestSQLiteRequiresName(t *testing.T) {
	store := New(config.NewWithValues(map[string]any{"STORE_SQLITE_DIR": t.TempDir()}), "")

	require.ErrorIs(t, store.Init(context.Background()), ErrEmptyName)
}
