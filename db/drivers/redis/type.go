package redis

import (
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/shortlink-org/bank-saga/config"
)

// Config - config
type Config struct {
	URI string
}

// Store implementation of db interface
type Store struct {
	client *redis.Client

	done      chan struct{}
	closeOnce sync.Once

	config Config
	cfg    *config.Config
}
