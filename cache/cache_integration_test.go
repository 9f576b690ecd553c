//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc_redis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
)

func TestSharedTierAcrossInstances(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tc_redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("redis container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	open := func() *Client {
		c, err := New(ctx, logger.NewNop(), config.NewWithValues(map[string]any{"REDIS_URI": uri}), "WORKER_DEDUP")
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		return c
	}

	first, second := open(), open()

	require.NoError(t, first.Set(&cache.Item{Ctx: ctx, Key: "corr-1:account.create", Value: outcome{RoutingKey: "account.created"}, TTL: first.TTL()}))

	var got outcome
	require.NoError(t, second.Get(ctx, "corr-1:account.create", &got))
	assert.Equal(t, "account.created", got.RoutingKey)
}
