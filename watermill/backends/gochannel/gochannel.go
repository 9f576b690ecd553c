// Package gochannel provides an in-process backend. Every subscriber of a topic
// receives every message, which makes consumer groups implicit.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/shortlink-org/bank-saga/config"
	"github.com/shortlink-org/bank-saga/logger"
	bankwatermill "github.com/shortlink-org/bank-saga/watermill"
)

var _ bankwatermill.Backend = (*Backend)(nil)

type Backend struct {
	pubSub *gochannel.GoChannel
}

func New(log logger.Logger, cfg *config.Config) *Backend {
	cfg.SetDefault("MQ_GOCHANNEL_BUFFER", 1024)

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.GetInt("MQ_GOCHANNEL_BUFFER")),
	}, bankwatermill.NewWatermillLogger(log))

	return &Backend{pubSub: pubSub}
}

func (b *Backend) Publisher() message.Publisher   { return b.pubSub }
func (b *Backend) Subscriber() message.Subscriber { return b.pubSub }
func (b *Backend) Close() error                   { return b.pubSub.Close() }
