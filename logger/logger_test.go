package logger_test

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shortlink-org/bank-saga/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func decodeLine(t *testing.T, buffer *bytes.Buffer) map[string]any {
	t.Helper()

	var response map[string]any

	require.NoError(t, json.Unmarshal(buffer.Bytes(), &response), "Error unmarshalling")

	return response
}

func TestOutputInfoWithContextSlog(t *testing.T) {
	var buffer bytes.Buffer

	log, err := logger.New(logger.Configuration{
		Level:      logger.INFO_LEVEL,
		Writer:     &buffer,
		TimeFormat: time.RFC822,
	})
	require.NoError(t, err, "Error init a logger")

	log.InfoWithContext(context.Background(), "Hello World")

	response := decodeLine(t, &buffer)
	assert.Equal(t, "INFO", response["level"])
	assert.Equal(t, "Hello World", response["msg"])

	_, err = time.Parse(time.RFC822, response["time"].(string))
	require.NoError(t, err)

	source, ok := response["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source["file"], "logger_test.go")
}

func TestFieldsSlog(t *testing.T) {
	var buffer bytes.Buffer

	log, err := logger.New(logger.Configuration{
		Level:  logger.INFO_LEVEL,
		Writer: &buffer,
	})
	require.NoError(t, err, "Error init a logger")

	log.Info("Hello World", "hello", "world", "first", 1)

	response := decodeLine(t, &buffer)
	assert.Equal(t, "world", response["hello"])
	assert.InDelta(t, 1, response["first"], 0)
}

func TestSetLevel(t *testing.T) {
	var buffer bytes.Buffer

	log, err := logger.New(logger.Configuration{
		Level:  logger.ERROR_LEVEL,
		Writer: &buffer,
	})
	require.NoError(t, err, "Error init a logger")

	log.Info("Hello World")
	log.Warn("Hello World")
	assert.Empty(t, buffer.String())

	log.Error("Hello World")
	assert.NotEmpty(t, buffer.String())
}

func TestDefaultConfig(t *testing.T) {
	conf := logger.Default()

	assert.Equal(t, os.Stdout, conf.Writer)
	assert.Equal(t, time.RFC3339Nano, conf.TimeFormat)
	assert.Equal(t, logger.INFO_LEVEL, conf.Level)
}

func TestValidate(t *testing.T) {
	conf := logger.Configuration{Level: logger.DEBUG_LEVEL}
	require.NoError(t, conf.Validate())
	assert.Equal(t, os.Stdout, conf.Writer)
	assert.Equal(t, time.RFC3339Nano, conf.TimeFormat)

	bad := logger.Configuration{Level: 42}
	require.ErrorIs(t, bad.Validate(), logger.ErrInvalidLogLevel)

	_, err := logger.New(bad)
	require.ErrorIs(t, err, logger.ErrInvalidLogLevel)
}

func TestNop(t *testing.T) {
	log := logger.NewNop()
	log.Error("ignored")
	require.NoError(t, log.Close())
}
