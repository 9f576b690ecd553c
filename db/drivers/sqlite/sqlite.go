package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/XSAM/otelsql"
	"go.opentelemetry.io/otel/attribute"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/shortlink-org/bank-saga/config"
)

// New creates a SQLite store for the database file "<STORE_SQLITE_DIR>/<name>.db".
func New(cfg *config.Config, name string) *Store {
	return &Store{
		name: name,
		done: make(chan struct{}),
		cfg:  cfg,
	}
}

// Init - initialize
func (s *Store) Init(ctx context.Context) error {
	if s.name == "" {
		return &StoreError{Op: "init", Err: ErrEmptyName}
	}

	// Set configuration
	s.setConfig()

	if err := os.MkdirAll(filepath.Dir(s.config.Path), 0o750); err != nil {
		return &StoreError{Op: "init", Err: ErrDatabaseOpen, Details: err.Error()}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate",
		s.config.Path, s.config.BusyTimeout,
	)

	attrs := otelsql.WithAttributes(
		attribute.String("db.system.name", "sqlite"),
		attribute.String("db.namespace", s.name),
	)

	// Spans and pool metrics go to the global providers.
	client, err := otelsql.Open("sqlite", dsn, attrs, otelsql.WithSpanOptions(otelsql.SpanOptions{
		OmitConnResetSession: true,
		OmitRows:             true,
	}))
	if err != nil {
		return &StoreError{Op: "init", Err: ErrDatabaseOpen, Details: err.Error()}
	}

	// one writer per file; a single connection also serializes readers behind it
	client.SetMaxOpenConns(1)

	if err := client.PingContext(ctx); err != nil {
		_ = client.Close()

		return &StoreError{Op: "init", Err: ErrDatabaseOpen, Details: err.Error()}
	}

	s.client = client

	s.stats, err = otelsql.RegisterDBStatsMetrics(client, attrs)
	if err != nil {
		_ = client.Close()

		return &StoreError{Op: "init", Err: err, Details: "failed to register DB stats metrics"}
	}

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

		if s.client == nil {
			return
		}

		if s.stats != nil {
			_ = s.stats.Unregister()
		}

		if errClose := s.client.Close(); errClose != nil {
			err = &StoreError{
				Op:      "close",
				Err:     errClose,
				Details: "failed to close sqlite database",
			}
		}
	})

	return err
}

// setConfig - set configuration
func (s *Store) setConfig() {
	s.cfg.SetDefault("STORE_SQLITE_DIR", "/tmp/bank")       // directory holding one file per owner
	s.cfg.SetDefault("STORE_SQLITE_BUSY_TIMEOUT_MS", 5000) // wait on a locked database

	s.config = Config{
		Path:        filepath.Join(s.cfg.GetString("STORE_SQLITE_DIR"), s.name+".db"),
		BusyTimeout: s.cfg.GetInt("STORE_SQLITE_BUSY_TIMEOUT_MS"),
	}
}
