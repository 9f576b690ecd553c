package logger

// WithFields creates a new logger with pre-set fields
func (log *SlogLogger) WithFields(fields ...any) *SlogLogger {
	if len(fields) == 0 {
		return log
	}

	return &SlogLogger{logger: log.logger.With(fields...)}
}

// WithError creates a new logger with error field
func (log *SlogLogger) WithError(err error) *SlogLogger {
	if err == nil {
		return log
	}

	return log.WithFields("error", err.Error())
}

// WithCorrelation binds a correlation id, so every line of one workflow
// run can be grepped together.
func (log *SlogLogger) WithCorrelation(correlationID string) *SlogLogger {
	if correlationID == "" {
		return log
	}

	return log.WithFields("correlation_id", correlationID)
}

// WithTags creates a new logger with multiple tags. Empty keys or values are skipped.
func (log *SlogLogger) WithTags(tags map[string]string) *SlogLogger {
	fields := make([]any, 0, len(tags)*2)
	for k, v := range tags {
		if k != "" && v != "" {
			fields = append(fields, k, v)
		}
	}

	return log.WithFields(fields...)
}

// Bind returns log with correlationID and tags on every line. Loggers other
// than SlogLogger are returned unchanged.
func Bind(log Logger, correlationID string, tags map[string]string) Logger {
	slogger, ok := log.(*SlogLogger)
	if !ok {
		return log
	}

	return slogger.WithCorrelation(correlationID).WithTags(tags)
}
