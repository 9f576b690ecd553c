// Package profiling exposes the runtime profiles on the monitoring router.
package profiling

import (
	"net/http/pprof"
	"runtime"

	"github.com/felixge/fgprof"
	"github.com/go-chi/chi/v5"

	"github.com/shortlink-org/bank-saga/config"
)

// Register mounts /debug/pprof/ and /debug/fgprof on r when PROFILING_ENABLED
// is set. It reports whether anything was mounted.
func Register(r chi.Router, cfg *config.Config) bool {
	cfg.SetDefault("PROFILING_ENABLED", false)
	cfg.SetDefault("PROFILING_MUTEX_FRACTION", 5)  //nolint:mnd // one in five contention events
	cfg.SetDefault("PROFILING_BLOCK_RATE", 10_000) //nolint:mnd // one sample per 10µs blocked

	if !cfg.GetBool("PROFILING_ENABLED") {
		return false
	}

	runtime.SetMutexProfileFraction(cfg.GetInt("PROFILING_MUTEX_FRACTION"))
	runtime.SetBlockProfileRate(cfg.GetInt("PROFILING_BLOCK_RATE"))

	r.HandleFunc("/debug/pprof/*", pprof.Index)
	r.HandleFunc("/debug/pprof/profile", pprof.Profile)
	r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	r.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Wall-clock profile: on-CPU and off-CPU time together.
	r.Handle("/debug/fgprof", fgprof.Handler())

	return true
}
