package runner

import (
	"errors"
	"fmt"

	"github.com/weiihann/hotloop/results"
)

// ErrNoBenchmarks is returned when the include and exclude patterns select
// nothing.
var ErrNoBenchmarks = errors.New("no benchmarks to run")

// BenchmarkError reports a benchmark that failed. Err is the first failure:
// an execution error from the benchmark code, a crashed fork or a profiler
// that could not start.
type BenchmarkError struct {
	// Benchmark is the identity of the failed measurement.
	Benchmark string
	Err       error
}

func (e *BenchmarkError) Error() string {
	return fmt.Sprintf("benchmark %s failed: %v", e.Benchmark, e.Err)
}

func (e *BenchmarkError) Unwrap() error { return e.Err }

// fatal reports errors that abort the whole run whatever the fail-on-error
// setting: they mean the harness itself is broken.
func fatal(err error) bool {
	var mismatch *results.MismatchError

	return errors.As(err, &mismatch)
}
