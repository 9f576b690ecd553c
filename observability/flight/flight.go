// Package flight keeps a rolling execution trace in memory and writes it to
// disk when something goes wrong.
package flight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/trace"
	"time"

	"github.com/shortlink-org/bank-saga/config"
)

var errDisabled = errors.New("flight recorder not started")

// Recorder wraps a runtime flight recorder.
type Recorder struct {
	fr       *trace.FlightRecorder
	dumpPath string
}

// New starts a recorder when FLIGHT_RECORDER_ENABLED is set. A disabled
// recorder is nil; its methods are safe to call.
func New(cfg *config.Config) (*Recorder, error) {
	cfg.SetDefault("FLIGHT_RECORDER_ENABLED", false)
	cfg.SetDefault("FLIGHT_RECORDER_DUMP_PATH", filepath.Join(os.TempDir(), "bank-flight"))
	cfg.SetDefault("FLIGHT_RECORDER_MIN_AGE", "10s")
	cfg.SetDefault("FLIGHT_RECORDER_MAX_BYTES", 16<<20) //nolint:mnd // 16 MiB window

	if !cfg.GetBool("FLIGHT_RECORDER_ENABLED") {
		return nil, nil //nolint:nilnil // disabled
	}

	dumpPath := cfg.GetString("FLIGHT_RECORDER_DUMP_PATH")

	if err := os.MkdirAll(dumpPath, 0o755); err != nil { //nolint:gosec,mnd // dumps are read by operators
		return nil, fmt.Errorf("create flight recorder dump path %q: %w", dumpPath, err)
	}

	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   cfg.GetDuration("FLIGHT_RECORDER_MIN_AGE"),
		MaxBytes: uint64(max(cfg.GetInt("FLIGHT_RECORDER_MAX_BYTES"), 0)), //nolint:gosec // clamped
	})
	if err := fr.Start(); err != nil {
		return nil, fmt.Errorf("start flight recorder: %w", err)
	}

	return &Recorder{fr: fr, dumpPath: dumpPath}, nil
}

// Dump writes the current window to "flight-<reason>-<unixnano>.out".
func (r *Recorder) Dump(reason string) (string, error) {
	if r == nil || r.fr == nil || !r.fr.Enabled() {
		return "", errDisabled
	}

	path := filepath.Join(r.dumpPath, fmt.Sprintf("flight-%s-%d.out", reason, time.Now().UnixNano()))

	f, err := os.Create(path) //nolint:gosec // path built from config
	if err != nil {
		return "", fmt.Errorf("create flight dump %q: %w", path, err)
	}
	defer f.Close()

	if _, err := r.fr.WriteTo(f); err != nil {
		return "", fmt.Errorf("write flight dump: %w", err)
	}

	return path, nil
}

func (r *Recorder) Stop() {
	if r == nil || r.fr == nil {
		return
	}

	r.fr.Stop()
}
