package uow

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

var errAbort = errors.New("abort")

func open(t *testing.T) *sql.DB {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	store := sqlite.New(config.NewWithValues(map[string]any{"STORE_SQLITE_DIR": t.TempDir()}), "uow")
	require.NoError(t, store.Init(ctx))
	t.Cleanup(func() {
		cancel()
		_ = store.Close()
	})

	conn := store.GetConn().(*sql.DB)
	_, err := conn.Exec("CREATE TABLE items (id TEXT PRIMARY KEY)")
	require.NoError(t, err)

	return conn
}

func count(t *testing.T, conn *sql.DB) int {
	t.Helper()

	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM items").Scan(&n))

	return n
}

func insert(ctx context.Context, id string) error {
	tx, err := Tx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO items (id) VALUES (?)", id)

	return err
}

func TestDoCommits(t *testing.T) {
	conn := open(t)

	require.NoError(t, Do(context.Background(), conn, func(ctx context.Context) error {
		return insert(ctx, "a")
	}))

	assert.Equal(t, 1, count(t, conn))
}

func TestDoRollsBackOnError(t *testing.T) {
	conn := open(t)

	err := Do(context.Background(), conn, func(ctx context.Context) error {
		require.NoError(t, insert(ctx, "a"))

		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	assert.Equal(t, 0, count(t, conn))
}

func TestNestedDoJoinsTheOuterTransaction(t *testing.T) {
	conn := open(t)

	err := Do(context.Background(), conn, func(ctx context.Context) error {
		require.NoError(t, Do(ctx, conn, func(ctx context.Context) error { return insert(ctx, "a") }))

		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	assert.Equal(t, 0, count(t, conn))
}

func TestTxOutsideDo(t *testing.T) {
	_, err := Tx(context.Background())
	require.ErrorIs(t, err, ErrNoTx)
	assert.False(t, HasTx(context.Background()))
}
