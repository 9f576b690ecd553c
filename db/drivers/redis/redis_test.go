package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/config"
)

func TestRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := miniredis.RunT(t)

	store := New(config.NewWithValues(map[string]any{"REDIS_URI": "redis://" + srv.Addr() + "/0"}))
	require.NoError(t, store.Init(ctx))

	client, ok := store.GetConn().(*goredis.Client)
	require.True(t, ok)
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	srv.CheckGet(t, "k", "v")

	require.NoError(t, store.Close())
}

func TestRedisRequiresURI(t *testing.T) {
	store := New(config.NewWithValues(nil))

	require.ErrorIs(t, store.Init(context.Background()), ErrInvalidURI)
}
