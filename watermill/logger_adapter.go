package watermill

import (
	"github.com/ThreeDotsLabs/watermill"

	"github.com/shortlink-org/bank-saga/logger"
)

type watermillLoggerAdapter struct {
	log    logger.Logger
	fields watermill.LogFields
}

// NewWatermillLogger bridges watermill's logger onto ours.
func NewWatermillLogger(log logger.Logger) watermill.LoggerAdapter {
	return &watermillLoggerAdapter{
		log:    log,
		fields: make(watermill.LogFields),
	}
}

func (l *watermillLoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLoggerAdapter{
		log:    l.log,
		fields: l.fields.Add(fields),
	}
}

// mergeFields flattens base and call fields into key/value pairs; call fields win.
func (l *watermillLoggerAdapter) mergeFields(fields watermill.LogFields) []any {
	merged := l.fields.Add(fields)

	kv := make([]any, 0, len(merged)*2) //nolint:mnd // key + value
	for k, v := range merged {
		kv = append(kv, k, v)
	}

	return kv
}

func (l *watermillLoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	kv := l.mergeFields(fields)
	if err != nil {
		kv = append(kv, "error", err.Error())
	}

	l.log.Error(msg, kv...)
}

func (l *watermillLoggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.log.Info(msg, l.mergeFields(fields)...)
}

func (l *watermillLoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.log.Debug(msg, l.mergeFields(fields)...)
}

func (l *watermillLoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.Debug(msg, fields)
}
