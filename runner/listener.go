package runner

import (
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

// Listener follows a run as it happens. Calls are never concurrent.
type Listener interface {
	BenchmarkStarted(bp infra.BenchmarkParams)
	ForkStarted(bp infra.BenchmarkParams, fork, total int, warmup bool)
	// IterationFinished is called for warm-up and measurement iterations
	// alike, including those of warm-up forks.
	IterationFinished(ir *results.IterationResult)
	// BenchmarkFinished gets whatever was measured, which may be nil, and
	// the error that ended the benchmark, if any.
	BenchmarkFinished(bp infra.BenchmarkParams, rr *results.RunResult, err error)
}

type nopListener struct{}

func (nopListener) BenchmarkStarted(infra.BenchmarkParams) {}
func (nopListener) ForkStarted(infra.BenchmarkParams, int, int, bool) {}
func (nopListener) IterationFinished(*results.IterationResult) {}
func (nopListener) BenchmarkFinished(infra.BenchmarkParams, *results.RunResult, error) {}
