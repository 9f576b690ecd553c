package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shortlink-org/bank-saga/config"
)

// New builds a server for h on serverConfig.Addr. Requests run under ctx.
func New(ctx context.Context, h http.Handler, serverConfig Config, cfg *config.Config) *http.Server {
	cfg.SetDefault("HTTP_SERVER_READ_TIMEOUT", "5s")        // the maximum duration for reading the entire request, including the body
	cfg.SetDefault("HTTP_SERVER_WRITE_TIMEOUT", "5s")       // the maximum duration before timing out writes of the response
	cfg.SetDefault("HTTP_SERVER_IDLE_TIMEOUT", "30s")       // the maximum amount of time to wait for the next request when keep-alive is enabled
	cfg.SetDefault("HTTP_SERVER_READ_HEADER_TIMEOUT", "2s") // the amount of time allowed to read request headers

	return &http.Server{
		Addr:              serverConfig.Addr,
		Handler:           http.TimeoutHandler(h, serverConfig.Timeout, TimeoutMessage),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadTimeout:       cfg.GetDuration("HTTP_SERVER_READ_TIMEOUT"),
		WriteTimeout:      serverConfig.Timeout + cfg.GetDuration("HTTP_SERVER_WRITE_TIMEOUT"),
		IdleTimeout:       cfg.GetDuration("HTTP_SERVER_IDLE_TIMEOUT"),
		ReadHeaderTimeout: cfg.GetDuration("HTTP_SERVER_READ_HEADER_TIMEOUT"),
	}
}

// Serve runs srv until ctx is done, then shuts it down within grace.
func Serve(ctx context.Context, srv *http.Server, grace time.Duration) error {
	errs := make(chan error, 1)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("serve %s: %w", srv.Addr, err)
		}

		close(errs)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errs
}
