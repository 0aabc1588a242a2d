package results

import (
	"errors"
	"fmt"

	"github.com/weiihann/hotloop/infra"
)

// ErrFrozen is returned when a result is added after the primary result of
// an iteration has been read.
var ErrFrozen = errors.New("iteration result is frozen")

// IterationMeta carries the operation counts of one iteration.
type IterationMeta struct {
	// AllOps counts every operation executed, including the catch-up
	// phases. Profilers that normalise per operation use it because
	// their counters run for the whole iteration.
	AllOps int64
	// MeasuredOps counts the operations inside the measurement window.
	MeasuredOps int64
}

// IterationResult is the outcome of one measurement window. It is populated
// while the iteration's results are collected and frozen by the first call
// to Primary.
type IterationResult struct {
	Benchmark infra.BenchmarkParams
	Iteration infra.IterationParams
	// Index is the 1-based iteration number within its phase.
	Index  int
	Warmup bool
	Meta   IterationMeta

	primaries   []Result
	secondaries map[string][]Result
	labels      []string

	frozen  bool
	primary Result
	err     error
}

// NewIterationResult returns an empty result for one iteration.
func NewIterationResult(
	bp infra.BenchmarkParams,
	ip infra.IterationParams,
	index int,
	meta IterationMeta,
) *IterationResult {
	return &IterationResult{
		Benchmark:   bp,
		Iteration:   ip,
		Index:       index,
		Meta:        meta,
		secondaries: make(map[string][]Result),
	}
}

// AddResult records one thread or profiler result, routed by role.
func (ir *IterationResult) AddResult(r Result) error {
	if ir.frozen {
		return fmt.Errorf("add %q: %w", r.Label, ErrFrozen)
	}

	switch r.Role {
	case Primary:
		ir.primaries = append(ir.primaries, r)
	case Secondary, SecondaryDerivative:
		if _, ok := ir.secondaries[r.Label]; !ok {
			ir.labels = append(ir.labels, r.Label)
		}
		ir.secondaries[r.Label] = append(ir.secondaries[r.Label], r)
	default:
		return fmt.Errorf("add %q: unknown role %v", r.Label, r.Role)
	}

	return nil
}

// AddResults records several results.
func (ir *IterationResult) AddResults(rs ...Result) error {
	for _, r := range rs {
		if err := ir.AddResult(r); err != nil {
			return err
		}
	}

	return nil
}

// Primary returns the thread aggregate of the primary results and freezes
// the iteration.
func (ir *IterationResult) Primary() (Result, error) {
	if !ir.frozen {
		ir.frozen = true
		ir.primary, ir.err = ThreadAggregate(ir.primaries)
		if ir.err != nil {
			ir.err = fmt.Errorf("%s iteration %d: %w", ir.Benchmark.Identity(), ir.Index, ir.err)
		}
	}

	return ir.primary, ir.err
}

// RawPrimaries returns the per-thread primary results.
func (ir *IterationResult) RawPrimaries() []Result { return ir.primaries }

// RawSecondaries returns every secondary result reported under label.
func (ir *IterationResult) RawSecondaries(label string) []Result {
	return ir.secondaries[label]
}

// SecondaryLabels returns the secondary labels in the order they were first
// reported.
func (ir *IterationResult) SecondaryLabels() []string { return ir.labels }

// Secondaries returns the thread aggregate of each secondary label, in
// label order.
func (ir *IterationResult) Secondaries() ([]Result, error) {
	out := make([]Result, 0, len(ir.labels))
	for _, label := range ir.labels {
		r, err := ThreadAggregate(ir.secondaries[label])
		if err != nil {
			return nil, fmt.Errorf("%s iteration %d secondary %q: %w",
				ir.Benchmark.Identity(), ir.Index, label, err)
		}
		out = append(out, r)
	}

	return out, nil
}

// Frozen reports whether Primary has been called.
func (ir *IterationResult) Frozen() bool { return ir.frozen }
