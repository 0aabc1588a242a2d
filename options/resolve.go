package options

import (
	"fmt"
	"runtime"
	"time"

	"github.com/weiihann/hotloop/infra"
)

// System defaults, the lowest configuration layer.
const (
	DefaultIterations       = 5
	DefaultTime             = 10 * time.Second
	DefaultWarmupIterations = 5
	DefaultWarmupTime       = 10 * time.Second
	DefaultBatchSize        = 1
	DefaultForks            = 5
	DefaultWarmupForks      = 0
	DefaultThreads          = 1
	DefaultTimeUnit         = infra.Seconds
	DefaultOpsPerInvocation = 1
	DefaultTimeout          = 10 * time.Minute
	DefaultResultFormat     = "text"

	// Single-shot benchmarks measure cold behaviour, so they run one
	// measurement and no warm-up unless told otherwise.
	DefaultSingleShotIterations       = 1
	DefaultSingleShotWarmupIterations = 0
)

// DefaultModes is used when no layer names a mode.
var DefaultModes = []infra.Mode{infra.Throughput}

// Target is what a benchmark contributes to its resolved parameters.
type Target struct {
	Name    string
	Methods []string
	Ratios  []int
	Mode    infra.Mode
	Params  infra.Params
}

// Resolve fills every configurable value of a trial from o, falling back to
// the system defaults.
func (o Options) Resolve(t Target) (infra.BenchmarkParams, error) {
	single := t.Mode == infra.SingleShotTime

	iterations := DefaultIterations
	warmupIterations := DefaultWarmupIterations
	if single {
		iterations = DefaultSingleShotIterations
		warmupIterations = DefaultSingleShotWarmupIterations
	}

	ratios := t.Ratios
	if groups, ok := o.ThreadGroups.Get(); ok && len(t.Ratios) > 0 {
		if len(groups) != len(t.Ratios) {
			return infra.BenchmarkParams{}, fmt.Errorf(
				"%s: %d thread groups given for %d methods", t.Name, len(groups), len(t.Ratios))
		}
		ratios = groups
	}

	threads := expandThreads(o.Threads.OrElse(DefaultThreads))
	threads = infra.RoundThreads(threads, ratios)

	warmupThreads := 0
	if wt, ok := o.WarmupThreads.Get(); ok {
		warmupThreads = infra.RoundThreads(expandThreads(wt), ratios)
	}

	bp := infra.BenchmarkParams{
		Benchmark:      t.Name,
		Methods:        t.Methods,
		Mode:           t.Mode,
		Threads:        threads,
		ThreadGroups:   ratios,
		WarmupThreads:  warmupThreads,
		RewarmOnChange: o.RewarmOnThreadChange.OrElse(false),
		SyncIterations: o.SyncIterations.OrElse(true),
		Forks:          o.Forks.OrElse(DefaultForks),
		WarmupForks:    o.WarmupForks.OrElse(DefaultWarmupForks),
		Warmup: infra.IterationParams{
			Count:     o.WarmupIterations.OrElse(warmupIterations),
			Time:      o.WarmupTime.OrElse(DefaultWarmupTime),
			BatchSize: o.WarmupBatchSize.OrElse(DefaultBatchSize),
		},
		Measurement: infra.IterationParams{
			Count:     o.Iterations.OrElse(iterations),
			Time:      o.Time.OrElse(DefaultTime),
			BatchSize: o.BatchSize.OrElse(DefaultBatchSize),
		},
		TimeUnit:         o.TimeUnit.OrElse(DefaultTimeUnit),
		OpsPerInvocation: o.OpsPerInvocation.OrElse(DefaultOpsPerInvocation),
		Params:           t.Params,
		Timeout:          o.Timeout.OrElse(DefaultTimeout),
	}

	if err := bp.Validate(); err != nil {
		return infra.BenchmarkParams{}, err
	}

	return bp, nil
}

// ModesOrDefault returns the configured modes.
func (o Options) ModesOrDefault() []infra.Mode {
	return o.Modes.OrElse(DefaultModes)
}

func expandThreads(n int) int {
	if n == MaxThreads {
		return runtime.NumCPU()
	}

	return n
}
