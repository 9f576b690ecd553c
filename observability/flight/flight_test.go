package flight

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shortlink-org/bank-saga/config"
)

func TestDisabledRecorderIsNil(t *testing.T) {
	r, err := New(config.NewWithValues(map[string]any{}))
	require.NoError(t, err)
	assert.Nil(t, r)

	_, err = r.Dump("saga-timeout")
	require.ErrorIs(t, err, errDisabled)

	r.Stop()
}

func TestDumpWritesTrace(t *testing.T) {
	dir := t.TempDir()

	r, err := New(config.NewWithValues(map[string]any{
		"FLIGHT_RECORDER_ENABLED":   true,
		"FLIGHT_RECORDER_DUMP_PATH": dir,
	}))
	require.NoError(t, err)
	t.Cleanup(r.Stop)

	path, err := r.Dump("serve-error")
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
