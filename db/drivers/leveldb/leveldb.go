package leveldb

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/shortlink-org/bank-saga/config"
)

// Config - config
type Config struct {
	Path string
}

// Store implementation of db interface
type Store struct {
	client *leveldb.DB
	config Config
	name   string

	done      chan struct{}
	closeOnce sync.Once

	cfg *config.Config
}

// New creates a LevelDB store at "<JOURNAL_LEVELDB_PATH>/<name>".
func New(cfg *config.Config, name string) *Store {
	return &Store{
		config: Config{},
		name:   name,
		done:   make(chan struct{}),
		cfg:    cfg,
	}
}

// Init - initialize
func (s *Store) Init(ctx context.Context) error {
	var err error

	// Set configuration
	s.setConfig()

	s.client, err = leveldb.OpenFile(s.config.Path, nil)
	if err != nil {
		return &StoreError{
			Op:      "init",
			Err:     ErrDatabaseOpen,
			Details: err.Error(),
		}
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

		if errClose := s.client.Close(); errClose != nil {
			err = &StoreError{
				Op:      "close",
				Err:     errClose,
				Details: "failed to close leveldb database",
			}
		}
	})

	return err
}

// setConfig - set configuration
func (s *Store) setConfig() {
	s.cfg.SetDefault("JOURNAL_LEVELDB_PATH", "/tmp/bank/leveldb") // LevelDB root directory

	s.config = Config{
		Path: filepath.Join(s.cfg.GetString("JOURNAL_LEVELDB_PATH"), s.name),
	}
}
