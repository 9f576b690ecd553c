package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
	bankwatermill "github.com/shortlink-org/bank-saga/watermill"
	"github.com/shortlink-org/bank-saga/watermill/backends/gochannel"
	"github.com/shortlink-org/bank-saga/watermill/backends/kafka"
	"github.com/shortlink-org/bank-saga/watermill/backends/rabbit"
)

// Bus backends.
const (
	BackendGoChannel = "gochannel"
	BackendKafka     = "kafka"
	BackendAMQP      = "amqp"
)

// NewBackend builds the transport selected by BUS_BACKEND.
//
//nolint:ireturn // the backend is chosen at runtime
func NewBackend(ctx context.Context, log logger.Logger, cfg *config.Config) (bankwatermill.Backend, error) {
	cfg.SetDefault("BUS_BACKEND", BackendGoChannel) // Select: gochannel, kafka, amqp

	kind := cfg.GetString("BUS_BACKEND")

	log.Info("bus backend", slog.String("backend", kind))

	switch kind {
	case BackendGoChannel:
		return gochannel.New(log, cfg), nil
	case BackendKafka:
		return kafka.New(ctx, log, cfg)
	case BackendAMQP:
		return rabbit.New(ctx, log, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, kind)
	}
}
