package handlers

import (
	"time"

	wmmessage "github.com/ThreeDotsLabs/watermill/message"
	wmmid "github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// DecoratorConfig controls per-handler middleware on top of the router chain.
type DecoratorConfig struct {
	Timeout time.Duration
	// Throttle caps messages per second for this handler; zero disables it.
	Throttle int64
}

// DecorateHandler wraps handler with Timeout and Throttle when configured.
func DecorateHandler(h wmmessage.NoPublishHandlerFunc, cfg DecoratorConfig) wmmessage.NoPublishHandlerFunc {
	if h == nil {
		return nil
	}

	handler := func(msg *wmmessage.Message) ([]*wmmessage.Message, error) {
		return nil, h(msg)
	}

	if cfg.Timeout > 0 {
		handler = wmmid.Timeout(cfg.Timeout)(handler)
	}

	if cfg.Throttle > 0 {
		handler = wmmid.NewThrottle(cfg.Throttle, time.Second).Middleware(handler)
	}

	return func(msg *wmmessage.Message) error {
		_, err := handler(msg)

		return err
	}
}
