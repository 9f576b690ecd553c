package db

import (
	"context"

	"github.com/shortlink-org/bank-saga/config"
)

// DB - common interface of db
type DB interface {
	Init(ctx context.Context) error
	GetConn() any
	Close() error
}

// Store abstract type
type Store struct {
	DB

	typeStore string
	name      string
	cfg       *config.Config
}
