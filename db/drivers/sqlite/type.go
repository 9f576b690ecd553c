package sqlite

import (
	"database/sql"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/shortlink-org/bank-saga/config"
)

// Config - config
type Config struct {
	Path        string
	BusyTimeout int
}

// Store implementation of db interface
type Store struct {
	client *sql.DB
	stats  metric.Registration
	config Config
	name   string

	done      chan struct{}
	closeOnce sync.Once

	cfg *config.Config
}
