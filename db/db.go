/*
Data Base package
*/
package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/db/drivers/leveldb"
	"github.com/shortlink-org/bank-saga/db/drivers/redis"
	"github.com/shortlink-org/bank-saga/db/drivers/sqlite"
	"github.com/shortlink-org/bank-saga/logger"
)

// Store types.
const (
	TypeSQLite  = "sqlite"
	TypeLevelDB = "leveldb"
	TypeRedis   = "redis"
)

// New - return an initialized store of typeStore.
// name selects the database file for file-backed stores, so every owner gets its own.
func New(ctx context.Context, log logger.Logger, cfg *config.Config, typeStore, name string) (DB, error) {
	store := &Store{
		typeStore: typeStore,
		name:      name,
		cfg:       cfg,
	}

	switch store.typeStore {
	case TypeSQLite:
		store.DB = sqlite.New(cfg, name)
	case TypeLevelDB:
		store.DB = leveldb.New(cfg, name)
	case TypeRedis:
		store.DB = redis.New(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, typeStore)
	}

	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	log.Info("run db",
		slog.String("db", store.typeStore),
		slog.String("name", store.name),
	)

	return store, nil
}
