//go:build !unix

package profile

import (
	"fmt"
	"log/slog"
	"runtime"
)

const rusageName = "rusage"

func newRusage(string, *slog.Logger) (Profiler, error) {
	return nil, fmt.Errorf("getrusage is not available on %s: %w", runtime.GOOS, ErrProfilerUnavailable)
}
