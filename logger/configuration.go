package logger

import (
	"io"
	"os"
	"time"
)

// Log levels, from least to most verbose.
const (
	ERROR_LEVEL = iota
	WARN_LEVEL
	INFO_LEVEL
	DEBUG_LEVEL
)

// Configuration describes the logger output.
type Configuration struct {
	Writer     io.Writer
	TimeFormat string
	Level      int
}

// Default returns a configuration writing INFO and above to stdout.
func Default() Configuration {
	return Configuration{
		Writer:     os.Stdout,
		TimeFormat: time.RFC3339Nano,
		Level:      INFO_LEVEL,
	}
}

// Validate fills zero values with defaults and rejects unknown levels.
func (c *Configuration) Validate() error {
	if c.Level < ERROR_LEVEL || c.Level > DEBUG_LEVEL {
		return ErrInvalidLogLevel
	}

	if c.Writer == nil {
		c.Writer = os.Stdout
	}

	if c.TimeFormat == "" {
		c.TimeFormat = time.RFC3339Nano
	}

	return nil
}
