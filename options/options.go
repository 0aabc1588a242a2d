// Package options is the layered run configuration: explicit values from the
// command line or a Builder override a parent (config file and environment),
// which overrides benchmark-declared defaults, which override the system
// defaults.
package options

import (
	"maps"
	"slices"
	"time"

	"github.com/weiihann/hotloop/infra"
)

// Optional is a value that may be unset. Unset values fall through to the
// next configuration layer.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a set Optional.
func Some[T any](v T) Optional[T] { return Optional[T]{value: v, set: true} }

// None returns an unset Optional.
func None[T any]() Optional[T] { return Optional[T]{} }

// Get returns the value and whether it is set.
func (o Optional[T]) Get() (T, bool) { return o.value, o.set }

// IsSet reports whether a value is present.
func (o Optional[T]) IsSet() bool { return o.set }

// OrElse returns the value, or d when unset.
func (o Optional[T]) OrElse(d T) T {
	if o.set {
		return o.value
	}

	return d
}

// Or returns o when set, otherwise fallback.
func (o Optional[T]) Or(fallback Optional[T]) Optional[T] {
	if o.set {
		return o
	}

	return fallback
}

// MaxThreads is the thread count sentinel meaning one worker per CPU.
const MaxThreads = -1

// ProfilerConfig names a profiler and its initialisation string.
type ProfilerConfig struct {
	Name string
	Init string
}

// Options is one configuration layer.
type Options struct {
	Includes []string
	Excludes []string

	Iterations       Optional[int]
	Time             Optional[time.Duration]
	BatchSize        Optional[int]
	WarmupIterations Optional[int]
	WarmupTime       Optional[time.Duration]
	WarmupBatchSize  Optional[int]

	Forks       Optional[int]
	WarmupForks Optional[int]

	Threads              Optional[int]
	WarmupThreads        Optional[int]
	ThreadGroups         Optional[[]int]
	RewarmOnThreadChange Optional[bool]
	SyncIterations       Optional[bool]

	Modes            Optional[[]infra.Mode]
	TimeUnit         Optional[infra.TimeUnit]
	OpsPerInvocation Optional[int]

	// Params overrides the declared values of benchmark parameters.
	Params map[string][]string

	// Profilers from every layer are combined, parent first.
	Profilers []ProfilerConfig

	Exec            Optional[string]
	ExecArgs        Optional[[]string]
	ExecArgsPrepend Optional[[]string]
	ExecArgsAppend  Optional[[]string]
	Env             Optional[[]string]

	Timeout     Optional[time.Duration]
	FailOnError Optional[bool]

	ResultFile   Optional[string]
	ResultFormat Optional[string]
	Verbosity    Optional[string]
	MetricsAddr  Optional[string]
}

// WithParent returns o layered over parent: every field set in o wins.
func (o Options) WithParent(parent Options) Options {
	out := Options{
		Includes: firstNonEmpty(o.Includes, parent.Includes),
		Excludes: firstNonEmpty(o.Excludes, parent.Excludes),

		Iterations:       o.Iterations.Or(parent.Iterations),
		Time:             o.Time.Or(parent.Time),
		BatchSize:        o.BatchSize.Or(parent.BatchSize),
		WarmupIterations: o.WarmupIterations.Or(parent.WarmupIterations),
		WarmupTime:       o.WarmupTime.Or(parent.WarmupTime),
		WarmupBatchSize:  o.WarmupBatchSize.Or(parent.WarmupBatchSize),

		Forks:       o.Forks.Or(parent.Forks),
		WarmupForks: o.WarmupForks.Or(parent.WarmupForks),

		Threads:              o.Threads.Or(parent.Threads),
		WarmupThreads:        o.WarmupThreads.Or(parent.WarmupThreads),
		ThreadGroups:         o.ThreadGroups.Or(parent.ThreadGroups),
		RewarmOnThreadChange: o.RewarmOnThreadChange.Or(parent.RewarmOnThreadChange),
		SyncIterations:       o.SyncIterations.Or(parent.SyncIterations),

		Modes:            o.Modes.Or(parent.Modes),
		TimeUnit:         o.TimeUnit.Or(parent.TimeUnit),
		OpsPerInvocation: o.OpsPerInvocation.Or(parent.OpsPerInvocation),

		Exec:            o.Exec.Or(parent.Exec),
		ExecArgs:        o.ExecArgs.Or(parent.ExecArgs),
		ExecArgsPrepend: o.ExecArgsPrepend.Or(parent.ExecArgsPrepend),
		ExecArgsAppend:  o.ExecArgsAppend.Or(parent.ExecArgsAppend),
		Env:             o.Env.Or(parent.Env),

		Timeout:     o.Timeout.Or(parent.Timeout),
		FailOnError: o.FailOnError.Or(parent.FailOnError),

		ResultFile:   o.ResultFile.Or(parent.ResultFile),
		ResultFormat: o.ResultFormat.Or(parent.ResultFormat),
		Verbosity:    o.Verbosity.Or(parent.Verbosity),
		MetricsAddr:  o.MetricsAddr.Or(parent.MetricsAddr),
	}

	if len(parent.Params) > 0 || len(o.Params) > 0 {
		out.Params = make(map[string][]string, len(parent.Params)+len(o.Params))
		maps.Copy(out.Params, parent.Params)
		maps.Copy(out.Params, o.Params)
	}

	out.Profilers = append(slices.Clone(parent.Profilers), o.Profilers...)

	return out
}

func firstNonEmpty(a, b []string) []string {
	if len(a) > 0 {
		return a
	}

	return b
}
