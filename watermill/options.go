package watermill

import (
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shortlink-org/bank-saga/config"
)

const defaultDLQTopic = "bank.dlq"

// Option configures Watermill client behavior.
type Option func(*Options)

// Options describe middleware configuration that can be tweaked via functional options.
type Options struct {
	ServiceName    string
	Retry          RetryOptions
	Timeout        TimeoutOptions
	CircuitBreaker CircuitBreakerOptions
	DLQ            DLQOptions
	CloseTimeout   time.Duration
}

// RetryOptions configure retry middleware behavior.
type RetryOptions struct {
	Enabled         bool
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          float64
	MaxElapsedTime  time.Duration
}

// TimeoutOptions configure handler timeout middleware.
type TimeoutOptions struct {
	Enabled  bool
	Duration time.Duration
}

// CircuitBreakerOptions configure the circuit breaker middleware.
type CircuitBreakerOptions struct {
	Enabled  bool
	Settings gobreaker.Settings
}

// DLQOptions configure the dead-letter path for poison messages.
type DLQOptions struct {
	Enabled bool
	Topic   string
}

func defaultOptions(cfg *config.Config) Options {
	cfg.SetDefault("WATERMILL_RETRY_ENABLED", true)
	cfg.SetDefault("WATERMILL_RETRY_MAX_RETRIES", 3)
	cfg.SetDefault("WATERMILL_RETRY_INITIAL_INTERVAL", "150ms")
	cfg.SetDefault("WATERMILL_RETRY_MAX_INTERVAL", "2s")
	cfg.SetDefault("WATERMILL_RETRY_MULTIPLIER", 2.0)
	cfg.SetDefault("WATERMILL_RETRY_JITTER", 0.15)
	cfg.SetDefault("WATERMILL_RETRY_MAX_ELAPSED", "0s")

	cfg.SetDefault("WATERMILL_HANDLER_TIMEOUT_ENABLED", true)
	cfg.SetDefault("WATERMILL_HANDLER_TIMEOUT", "20s")

	cfg.SetDefault("WATERMILL_CB_ENABLED", true)
	cfg.SetDefault("WATERMILL_CB_TIMEOUT", "30s")
	cfg.SetDefault("WATERMILL_CB_INTERVAL", "0s")
	cfg.SetDefault("WATERMILL_CB_FAILURE_THRESHOLD", 5)
	cfg.SetDefault("WATERMILL_CB_HALFOPEN_MAX_REQUESTS", 1)

	cfg.SetDefault("WATERMILL_DLQ_ENABLED", true)
	cfg.SetDefault("WATERMILL_DLQ_TOPIC", defaultDLQTopic)
	cfg.SetDefault("WATERMILL_CLOSE_TIMEOUT", "10s")

	serviceName := strings.TrimSpace(cfg.GetString("SERVICE_NAME"))
	if serviceName == "" {
		serviceName = "bank"
	}

	retry := RetryOptions{
		Enabled:         cfg.GetBool("WATERMILL_RETRY_ENABLED"),
		MaxRetries:      max(cfg.GetInt("WATERMILL_RETRY_MAX_RETRIES"), 0),
		InitialInterval: cfg.GetDuration("WATERMILL_RETRY_INITIAL_INTERVAL"),
		MaxInterval:     cfg.GetDuration("WATERMILL_RETRY_MAX_INTERVAL"),
		Multiplier:      cfg.GetFloat64("WATERMILL_RETRY_MULTIPLIER"),
		Jitter:          cfg.GetFloat64("WATERMILL_RETRY_JITTER"),
		MaxElapsedTime:  cfg.GetDuration("WATERMILL_RETRY_MAX_ELAPSED"),
	}

	timeout := TimeoutOptions{
		Enabled:  cfg.GetBool("WATERMILL_HANDLER_TIMEOUT_ENABLED"),
		Duration: cfg.GetDuration("WATERMILL_HANDLER_TIMEOUT"),
	}
	if timeout.Duration <= 0 {
		timeout.Duration = 20 * time.Second
	}

	failureThreshold := cfg.GetInt("WATERMILL_CB_FAILURE_THRESHOLD")
	if failureThreshold <= 0 {
		failureThreshold = 5
	}

	cbSettings := gobreaker.Settings{
		Name:        serviceName + "_bus_handler",
		Timeout:     cfg.GetDuration("WATERMILL_CB_TIMEOUT"),
		Interval:    cfg.GetDuration("WATERMILL_CB_INTERVAL"),
		MaxRequests: uint32(max(cfg.GetInt("WATERMILL_CB_HALFOPEN_MAX_REQUESTS"), 1)), //nolint:gosec // bounded below
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold) //nolint:gosec // positive
		},
	}
	if cbSettings.Timeout <= 0 {
		cbSettings.Timeout = 30 * time.Second
	}

	dlqTopic := strings.TrimSpace(cfg.GetString("WATERMILL_DLQ_TOPIC"))
	if dlqTopic == "" {
		dlqTopic = defaultDLQTopic
	}

	return Options{
		ServiceName: serviceName,
		Retry:       retry,
		Timeout:     timeout,
		CircuitBreaker: CircuitBreakerOptions{
			Enabled:  cfg.GetBool("WATERMILL_CB_ENABLED"),
			Settings: cbSettings,
		},
		DLQ: DLQOptions{
			Enabled: cfg.GetBool("WATERMILL_DLQ_ENABLED"),
			Topic:   dlqTopic,
		},
		CloseTimeout: cfg.GetDuration("WATERMILL_CLOSE_TIMEOUT"),
	}
}

// WithRetryOptions overrides retry middleware configuration.
func WithRetryOptions(opts RetryOptions) Option {
	return func(o *Options) {
		o.Retry = opts
	}
}

// WithTimeout enables timeout middleware with the provided duration.
func WithTimeout(duration time.Duration) Option {
	return func(o *Options) {
		o.Timeout.Enabled = duration > 0
		o.Timeout.Duration = duration
	}
}

// WithDLQTopic routes poison messages to topic.
func WithDLQTopic(topic string) Option {
	return func(o *Options) {
		o.DLQ = DLQOptions{Enabled: topic != "", Topic: topic}
	}
}

// DisableRetry disables retry middleware entirely.
func DisableRetry() Option {
	return func(o *Options) {
		o.Retry.Enabled = false
	}
}

// DisableCircuitBreaker disables the circuit breaker middleware.
func DisableCircuitBreaker() Option {
	return func(o *Options) {
		o.CircuitBreaker.Enabled = false
	}
}
