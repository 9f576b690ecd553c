package leveldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/goleak"

	"github.com/shortlink-org/bank-saga/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/syndtr/goleveldb/leveldb.(*DB).mpoolDrain"))
}

func TestLevelDB(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := New(config.NewWithValues(map[string]any{"JOURNAL_LEVELDB_PATH": t.TempDir()}), "journal")

	err := store.Init(ctx)
	require.NoError(t, err)

	conn, ok := store.GetConn().(*leveldb.DB)
	require.True(t, ok)
	require.NoError(t, conn.Put([]byte("k"), []byte("v"), nil))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
