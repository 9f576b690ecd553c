// Package httpserver builds the HTTP servers of the bank's operational endpoints.
package httpserver

import (
	"time"
)

// Config contains base configuration for an HTTP server.
type Config struct {
	Addr    string
	Timeout time.Duration
}
