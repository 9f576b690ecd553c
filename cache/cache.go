package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/cache/v9"
	goredis "github.com/redis/go-redis/v9"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/db"
	"github.com/shortlink-org/bank-saga/logger"
)

// Client is a two-tier cache: TinyLFU in process, Redis when REDIS_URI is set.
type Client struct {
	*cache.Cache

	ttl   time.Duration
	store db.DB
}

// New returns a new cache.Client. prefix selects the config keys, e.g.
// "WORKER_DEDUP" reads WORKER_DEDUP_TTL and WORKER_DEDUP_SIZE.
func New(ctx context.Context, log logger.Logger, cfg *config.Config, prefix string) (*Client, error) {
	cfg.SetDefault(prefix+"_TTL", "10m")
	cfg.SetDefault(prefix+"_SIZE", 10000)
	cfg.SetDefault(prefix+"_METRICS_ENABLED", true)

	ttl := cfg.GetDuration(prefix + "_TTL")

	opts := &cache.Options{
		LocalCache:   cache.NewTinyLFU(cfg.GetInt(prefix+"_SIZE"), ttl),
		StatsEnabled: cfg.GetBool(prefix + "_METRICS_ENABLED"),
	}

	client := &Client{ttl: ttl}

	cfg.SetDefault("REDIS_URI", "")
	if cfg.GetString("REDIS_URI") != "" {
		store, err := db.New(ctx, log, cfg, db.TypeRedis, prefix)
		if err != nil {
			return nil, &InitCacheError{err}
		}

		conn, ok := store.GetConn().(*goredis.Client)
		if !ok {
			_ = store.Close()

			return nil, db.ErrGetConnection
		}

		opts.Redis = conn
		client.store = store
	}

	client.Cache = cache.New(opts)

	log.Info("cache initialized",
		slog.String("prefix", prefix),
		slog.Duration("ttl", ttl),
		slog.Bool("shared", client.store != nil),
	)

	return client, nil
}

// TTL is the lifetime of cached items.
func (c *Client) TTL() time.Duration {
	return c.ttl
}

// Close releases the shared tier connection.
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}

	return c.store.Close()
}
