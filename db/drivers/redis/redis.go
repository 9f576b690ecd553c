package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/shortlink-org/bank-saga/config"
)

func New(cfg *config.Config) *Store {
	return &Store{
		done: make(chan struct{}),
		cfg:  cfg,
	}
}

// Init - initialize
func (s *Store) Init(ctx context.Context) error {
	// Set configuration
	s.setConfig()

	if s.config.URI == "" {
		return &StoreError{
			Op:      "init",
			Err:     ErrInvalidURI,
			Details: "redis uri configuration is empty",
		}
	}

	opts, err := redis.ParseURL(s.config.URI)
	if err != nil {
		return &StoreError{
			Op:      "init",
			Err:     ErrInvalidURI,
			Details: err.Error(),
		}
	}

	// Connect to Redis
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return &StoreError{
			Op:      "init",
			Err:     ErrClientConnection,
			Details: err.Error(),
		}
	}

	s.client = client

	// Graceful shutdown
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return nil
}

// GetConn - get connect
func (s *Store) GetConn() any {
	return s.client
}

// Close - close
func (s *Store) Close() error {
	var err error

	s.closeOnce.Do(func() {
		close(s.done)

		if s.client != nil {
			err = s.client.Close()
		}
	})

	return err
}

// setConfig - set configuration
func (s *Store) setConfig() {
	s.cfg.SetDefault("REDIS_URI", "") // e.g. redis://localhost:6379/0; empty disables the shared tier

	s.config = Config{
		URI: s.cfg.GetString("REDIS_URI"),
	}
}
