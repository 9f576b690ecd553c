// Package boltstore keeps saga instances in a bbolt file.
package boltstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"go.etcd.io/bbolt"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/saga"
)

var (
	instanceBucket = []byte("saga_instances")

	errNotConfigured = errors.New("boltstore: storage is not configured")
	errEmptyID       = errors.New("boltstore: correlation id is required")
)

var _ saga.InstanceStore = (*Store)(nil)

// Store provides a bbolt-backed saga instance store.
type Store struct {
	db *bbolt.DB
}

// New opens the store at SAGA_STORE_PATH.
func New(cfg *config.Config) (*Store, error) {
	cfg.SetDefault("SAGA_STORE_PATH", "/tmp/bank/saga.db")

	return Open(cfg.GetString("SAGA_STORE_PATH"))
}

// Open opens a bbolt-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, errBucket := tx.CreateBucketIfNotExists(instanceBucket)

		return errBucket
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create instance bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Save upserts an instance.
func (s *Store) Save(ctx context.Context, instance saga.Instance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	if strings.TrimSpace(instance.CorrelationID) == "" {
		return errEmptyID
	}

	payload, err := json.Marshal(instance)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(instanceBucket).Put([]byte(instance.CorrelationID), payload)
	})
}

// Get fetches an instance by correlation id.
func (s *Store) Get(ctx context.Context, correlationID string) (saga.Instance, error) {
	if err := ctx.Err(); err != nil {
		return saga.Instance{}, err
	}
	if s == nil || s.db == nil {
		return saga.Instance{}, errNotConfigured
	}

	var instance saga.Instance

	err := s.db.View(func(tx *bbolt.Tx) error {
		payload := tx.Bucket(instanceBucket).Get([]byte(correlationID))
		if payload == nil {
			return saga.ErrInstanceNotFound
		}

		if err := json.Unmarshal(payload, &instance); err != nil {
			return fmt.Errorf("unmarshal instance: %w", err)
		}

		return nil
	})
	if err != nil {
		return saga.Instance{}, err
	}

	return instance, nil
}

// ListByStatus returns the instances in status, ordered by correlation id.
func (s *Store) ListByStatus(ctx context.Context, status saga.Status) ([]saga.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}

	var out []saga.Instance

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(instanceBucket).ForEach(func(_, payload []byte) error {
			var instance saga.Instance
			if err := json.Unmarshal(payload, &instance); err != nil {
				return fmt.Errorf("unmarshal instance: %w", err)
			}

			if instance.Status == status {
				out = append(out, instance)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
