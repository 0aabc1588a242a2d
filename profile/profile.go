// Package profile attaches profilers to benchmark trials. Internal profilers
// run inside the benchmark process around every measurement iteration;
// external profilers wrap the forked process and read what it leaves behind.
package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

var (
	// ErrProfilerUnavailable is returned by a profiler constructor when the
	// host cannot support it. Callers skip such profilers.
	ErrProfilerUnavailable = errors.New("profiler unavailable")

	// ErrDuplicateProfiler is the sentinel behind DuplicateError.
	ErrDuplicateProfiler = errors.New("duplicate profiler")

	// ErrUnknownProfiler is returned for a name no profiler answers to.
	ErrUnknownProfiler = errors.New("unknown profiler")
)

// DuplicateError reports a profiler requested more than once in a run.
type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("Cannot instantiate the same profiler more than once: %s", e.Name)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateProfiler }

// Profiler is the common part of both families.
type Profiler interface {
	Name() string
	Description() string
}

// Internal profilers run in the benchmark process. BeforeIteration is called
// right before the workers start and AfterIteration right after they stop.
type Internal interface {
	Profiler
	BeforeIteration(bp infra.BenchmarkParams, ip infra.IterationParams) error
	AfterIteration(
		bp infra.BenchmarkParams,
		ip infra.IterationParams,
		meta results.IterationMeta,
	) ([]results.Result, error)
}

// TrialOutput is what an external profiler gets to inspect after the forked
// process exits.
type TrialOutput struct {
	// AllOps is the operation count of every iteration of the trial,
	// warm-up included, since the process was observed throughout.
	AllOps     int64
	StdoutPath string
	StderrPath string
}

// External profilers wrap the forked process.
type External interface {
	Profiler
	// Prefix is prepended to the child command line, e.g. a wrapper tool.
	Prefix(bp infra.BenchmarkParams) []string
	// Args are appended to the child's own arguments.
	Args(bp infra.BenchmarkParams) []string
	BeforeTrial(bp infra.BenchmarkParams) error
	AfterTrial(bp infra.BenchmarkParams, out TrialOutput) ([]results.Result, error)
}

// Set is the profilers of one run in registration order.
type Set struct {
	Internal []Internal
	External []External
}

// Empty reports whether the set has no profilers.
func (s *Set) Empty() bool {
	return s == nil || len(s.Internal)+len(s.External) == 0
}

// BeforeIteration starts the internal profilers in registration order.
func (s *Set) BeforeIteration(bp infra.BenchmarkParams, ip infra.IterationParams) error {
	if s == nil {
		return nil
	}

	for _, p := range s.Internal {
		if err := p.BeforeIteration(bp, ip); err != nil {
			return fmt.Errorf("profiler %s: %w", p.Name(), err)
		}
	}

	return nil
}

// AfterIteration stops the internal profilers in reverse order and collects
// their results.
func (s *Set) AfterIteration(
	bp infra.BenchmarkParams,
	ip infra.IterationParams,
	meta results.IterationMeta,
) ([]results.Result, error) {
	if s == nil {
		return nil, nil
	}

	var out []results.Result
	var errs []error

	for _, p := range slices.Backward(s.Internal) {
		rs, err := p.AfterIteration(bp, ip, meta)
		if err != nil {
			errs = append(errs, fmt.Errorf("profiler %s: %w", p.Name(), err))

			continue
		}
		out = append(out, rs...)
	}

	return out, errors.Join(errs...)
}

// Prefix concatenates the command prefixes of the external profilers.
func (s *Set) Prefix(bp infra.BenchmarkParams) []string {
	if s == nil {
		return nil
	}

	var out []string
	for _, p := range s.External {
		out = append(out, p.Prefix(bp)...)
	}

	return out
}

// Args concatenates the extra child arguments of the external profilers.
func (s *Set) Args(bp infra.BenchmarkParams) []string {
	if s == nil {
		return nil
	}

	var out []string
	for _, p := range s.External {
		out = append(out, p.Args(bp)...)
	}

	return out
}

// BeforeTrial prepares the external profilers in registration order.
func (s *Set) BeforeTrial(bp infra.BenchmarkParams) error {
	if s == nil {
		return nil
	}

	for _, p := range s.External {
		if err := p.BeforeTrial(bp); err != nil {
			return fmt.Errorf("profiler %s: %w", p.Name(), err)
		}
	}

	return nil
}

// AfterTrial collects the external profilers' results in reverse order.
// A failing profiler is logged and skipped.
func (s *Set) AfterTrial(
	bp infra.BenchmarkParams,
	out TrialOutput,
	logger *slog.Logger,
) []results.Result {
	if s == nil {
		return nil
	}

	var rs []results.Result
	for _, p := range slices.Backward(s.External) {
		got, err := p.AfterTrial(bp, out)
		if err != nil {
			logger.Warn("profiler failed",
				slog.String("profiler", p.Name()),
				slog.String("error", err.Error()),
			)

			continue
		}
		rs = append(rs, got...)
	}

	return rs
}
