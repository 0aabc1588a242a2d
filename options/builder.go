package options

import (
	"time"

	"github.com/weiihann/hotloop/infra"
)

// Builder assembles Options programmatically.
type Builder struct {
	o      Options
	parent *Options
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Parent sets the layer the built options fall back to.
func (b *Builder) Parent(p Options) *Builder {
	b.parent = &p

	return b
}

func (b *Builder) Include(pattern string) *Builder {
	b.o.Includes = append(b.o.Includes, pattern)

	return b
}

func (b *Builder) Exclude(pattern string) *Builder {
	b.o.Excludes = append(b.o.Excludes, pattern)

	return b
}

func (b *Builder) MeasurementIterations(n int) *Builder {
	b.o.Iterations = Some(n)

	return b
}

func (b *Builder) MeasurementTime(d time.Duration) *Builder {
	b.o.Time = Some(d)

	return b
}

func (b *Builder) MeasurementBatchSize(n int) *Builder {
	b.o.BatchSize = Some(n)

	return b
}

func (b *Builder) WarmupIterations(n int) *Builder {
	b.o.WarmupIterations = Some(n)

	return b
}

func (b *Builder) WarmupTime(d time.Duration) *Builder {
	b.o.WarmupTime = Some(d)

	return b
}

func (b *Builder) WarmupBatchSize(n int) *Builder {
	b.o.WarmupBatchSize = Some(n)

	return b
}

func (b *Builder) Forks(n int) *Builder {
	b.o.Forks = Some(n)

	return b
}

func (b *Builder) WarmupForks(n int) *Builder {
	b.o.WarmupForks = Some(n)

	return b
}

// Threads sets the worker count; MaxThreads means one per CPU.
func (b *Builder) Threads(n int) *Builder {
	b.o.Threads = Some(n)

	return b
}

func (b *Builder) WarmupThreads(n int) *Builder {
	b.o.WarmupThreads = Some(n)

	return b
}

func (b *Builder) ThreadGroups(ratios ...int) *Builder {
	b.o.ThreadGroups = Some(ratios)

	return b
}

func (b *Builder) RewarmOnThreadChange(v bool) *Builder {
	b.o.RewarmOnThreadChange = Some(v)

	return b
}

func (b *Builder) SyncIterations(v bool) *Builder {
	b.o.SyncIterations = Some(v)

	return b
}

func (b *Builder) Mode(modes ...infra.Mode) *Builder {
	b.o.Modes = Some(modes)

	return b
}

func (b *Builder) TimeUnit(u infra.TimeUnit) *Builder {
	b.o.TimeUnit = Some(u)

	return b
}

func (b *Builder) OpsPerInvocation(n int) *Builder {
	b.o.OpsPerInvocation = Some(n)

	return b
}

// Param overrides the values of a benchmark parameter.
func (b *Builder) Param(name string, values ...string) *Builder {
	if b.o.Params == nil {
		b.o.Params = make(map[string][]string)
	}
	b.o.Params[name] = values

	return b
}

// AddProfiler adds a profiler with its initialisation string.
func (b *Builder) AddProfiler(name, init string) *Builder {
	b.o.Profilers = append(b.o.Profilers, ProfilerConfig{Name: name, Init: init})

	return b
}

func (b *Builder) Exec(path string) *Builder {
	b.o.Exec = Some(path)

	return b
}

func (b *Builder) ExecArgs(args ...string) *Builder {
	b.o.ExecArgs = Some(args)

	return b
}

func (b *Builder) ExecArgsPrepend(args ...string) *Builder {
	b.o.ExecArgsPrepend = Some(args)

	return b
}

func (b *Builder) ExecArgsAppend(args ...string) *Builder {
	b.o.ExecArgsAppend = Some(args)

	return b
}

func (b *Builder) Env(kv ...string) *Builder {
	b.o.Env = Some(kv)

	return b
}

func (b *Builder) Timeout(d time.Duration) *Builder {
	b.o.Timeout = Some(d)

	return b
}

func (b *Builder) FailOnError(v bool) *Builder {
	b.o.FailOnError = Some(v)

	return b
}

func (b *Builder) Result(path, format string) *Builder {
	b.o.ResultFile = Some(path)
	b.o.ResultFormat = Some(format)

	return b
}

func (b *Builder) Verbosity(level string) *Builder {
	b.o.Verbosity = Some(level)

	return b
}

func (b *Builder) MetricsAddr(addr string) *Builder {
	b.o.MetricsAddr = Some(addr)

	return b
}

// Build returns the options, layered over the parent if one was set.
func (b *Builder) Build() Options {
	if b.parent != nil {
		return b.o.WithParent(*b.parent)
	}

	return b.o
}
