package router

import (
	"strings"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	"github.com/shortlink-org/bank-saga/cqrs/handlers"
	cqrsmessage "github.com/shortlink-org/bank-saga/cqrs/message"
)

// RouterConfig describes one consumer group's handlers.
type RouterConfig struct {
	// Group names the consumer group; every group receives every message once.
	Group       string
	Namer       *cqrsmessage.Namer
	Handlers    []HandlerRegistration
	Middlewares handlers.DecoratorConfig
}

// HandlerRegistration wires a handler to the topic of a routing key.
type HandlerRegistration struct {
	Name       string
	RoutingKey string
	Handler    wmmessage.NoPublishHandlerFunc
}

func (h HandlerRegistration) sanitize(group string) HandlerRegistration {
	h.RoutingKey = strings.TrimSpace(h.RoutingKey)
	if h.Name == "" {
		h.Name = strings.Join([]string{group, sanitizeTopic(h.RoutingKey)}, ".")
	}
	return h
}
