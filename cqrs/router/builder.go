package router

import (
	"errors"
	"fmt"
	"strings"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"

	"github.com/shortlink-org/bank-saga/cqrs/handlers"
)

var (
	errNilRouter       = errors.New("cqrs/router: watermill router is required")
	errNilSubscriber   = errors.New("cqrs/router: subscriber is required")
	errNoHandlers      = errors.New("cqrs/router: at least one handler must be configured")
	errNilHandlerLogic = errors.New("cqrs/router: handler function is nil")
)

// SubscriberSource hands out subscribers per consumer group.
type SubscriberSource interface {
	SubscriberFor(group string) (wmmessage.Subscriber, error)
}

// Register adds the configured handlers to router, subscribed in cfg.Group.
// Handlers are consumers only; anything they emit goes through a bus.
func Register(router *wmmessage.Router, source SubscriberSource, cfg RouterConfig) error {
	if router == nil {
		return errNilRouter
	}
	if source == nil {
		return errNilSubscriber
	}
	if len(cfg.Handlers) == 0 {
		return errNoHandlers
	}

	group := sanitizeGroup(cfg.Group)

	subscriber, err := source.SubscriberFor(group)
	if err != nil {
		return fmt.Errorf("cqrs/router: subscriber for group %s: %w", group, err)
	}
	if subscriber == nil {
		return errNilSubscriber
	}

	for _, registration := range enumerateHandlers(cfg, group) {
		if registration.Handler == nil {
			return fmt.Errorf("%w: routing key %s", errNilHandlerLogic, registration.RoutingKey)
		}
		if registration.RoutingKey == "" {
			return fmt.Errorf("cqrs/router: routing key is empty for handler %s", registration.Name)
		}

		decorated := handlers.DecorateHandler(registration.Handler, cfg.Middlewares)
		router.AddNoPublisherHandler(registration.Name, cfg.Namer.Topic(registration.RoutingKey), subscriber, decorated)
	}

	return nil
}

func sanitizeGroup(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "cqrs"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

func sanitizeTopic(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "topic"
	}
	return strings.ToLower(strings.ReplaceAll(name, "*", "wildcard"))
}

func enumerateHandlers(cfg RouterConfig, group string) []HandlerRegistration {
	regs := make([]HandlerRegistration, 0, len(cfg.Handlers))
	for _, h := range cfg.Handlers {
		regs = append(regs, h.sanitize(group))
	}
	return regs
}
