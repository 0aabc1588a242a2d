package results

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/stats"
)

// DerivativePercentiles are the cut points reported for sample-time and
// single-shot primaries.
var DerivativePercentiles = []float64{0, 50, 90, 95, 99, 99.9, 99.99, 100}

// DerivativeLabel names the derivative of label at percentile p, e.g.
// "sort:p0.99".
func DerivativeLabel(label string, p float64) string {
	digits := 0
	if s := strconv.FormatFloat(p, 'f', -1, 64); strings.Contains(s, ".") {
		digits = len(s) - strings.IndexByte(s, '.') - 1
	}

	return label + ":p" + strconv.FormatFloat(p/100, 'f', digits+2, 64)
}

// Derivatives returns the percentile derivatives of a primary result, each
// with a bootstrap interval when the sample supports one.
func Derivatives(primary Result) []Result {
	if primary.Kind != KindSampleTime && primary.Kind != KindSingleShot {
		return nil
	}
	l, ok := primary.Stats.(*stats.List)
	if !ok || l.N() == 0 {
		return nil
	}

	cis, err := stats.BootstrapPercentiles(l, DerivativePercentiles,
		ScoreConfidence, bootstrapResamples(l.N()))

	out := make([]Result, len(DerivativePercentiles))
	for i, p := range DerivativePercentiles {
		r := Result{
			Kind:   KindScalarDerivative,
			Role:   SecondaryDerivative,
			Label:  DerivativeLabel(primary.Label, p),
			Unit:   primary.Unit,
			Policy: Avg,
			Stats:  stats.NewList(l.Percentile(p)),
		}
		if err == nil {
			r = r.WithInterval(cis[i])
		} else {
			r = r.WithInterval(stats.Invalid())
		}
		out[i] = r
	}

	return out
}

// bootstrapResamples trades resample count for sample size so that large
// pooled sample sets stay affordable.
func bootstrapResamples(n int64) int {
	const budget = 50_000_000
	r := int(budget / max(n, 1))

	return min(stats.DefaultResamples, max(100, r))
}

// BenchmarkResult is the outcome of one trial: the measurement iterations of
// one fork.
type BenchmarkResult struct {
	Params     infra.BenchmarkParams
	Iterations []*IterationResult

	// trialResults are secondaries measured over the whole trial, such as
	// the output of profilers wrapping the forked process.
	trialResults []Result
	computed     bool

	once        sync.Once
	primary     Result
	secondaries []Result
	err         error
}

// NewBenchmarkResult groups iterations of the benchmark described by bp.
// Every iteration must carry the same identity.
func NewBenchmarkResult(bp infra.BenchmarkParams, iterations []*IterationResult) (*BenchmarkResult, error) {
	for _, ir := range iterations {
		if !ir.Benchmark.SameIdentity(bp) {
			return nil, &MismatchError{
				Field: "benchmark",
				Want:  bp.Identity(),
				Got:   ir.Benchmark.Identity(),
			}
		}
	}

	return &BenchmarkResult{Params: bp, Iterations: iterations}, nil
}

// AddTrialResult records a secondary measured over the whole trial. It must
// be called before the result is first read.
func (br *BenchmarkResult) AddTrialResult(r Result) error {
	if br.computed {
		return fmt.Errorf("add trial result %q: %w", r.Label, ErrFrozen)
	}
	r.Role = Secondary
	br.trialResults = append(br.trialResults, r)

	return nil
}

// TrialResults returns the trial-level secondaries.
func (br *BenchmarkResult) TrialResults() []Result { return br.trialResults }

// Primary aggregates the iteration primaries.
func (br *BenchmarkResult) Primary() (Result, error) {
	br.once.Do(br.compute)

	return br.primary, br.err
}

// Secondaries aggregates each secondary label over the iterations and
// appends the primary's derivatives.
func (br *BenchmarkResult) Secondaries() ([]Result, error) {
	br.once.Do(br.compute)

	return br.secondaries, br.err
}

func (br *BenchmarkResult) compute() {
	br.computed = true
	br.primary, br.secondaries, br.err = aggregateIterations(br.Params, br.Iterations, br.trialResults)
}

// RunResult combines the trials of one benchmark across forks.
type RunResult struct {
	Params infra.BenchmarkParams
	Trials []*BenchmarkResult

	once        sync.Once
	primary     Result
	secondaries []Result
	err         error
}

// NewRunResult combines trials. All trials must share one identity.
func NewRunResult(trials []*BenchmarkResult) (*RunResult, error) {
	if len(trials) == 0 {
		return nil, ErrNoResults
	}

	bp := trials[0].Params
	for _, t := range trials[1:] {
		if !t.Params.SameIdentity(bp) {
			return nil, &MismatchError{
				Field: "benchmark",
				Want:  bp.Identity(),
				Got:   t.Params.Identity(),
			}
		}
	}

	return &RunResult{Params: bp, Trials: trials}, nil
}

// Iterations returns every measurement iteration of every trial in order.
func (rr *RunResult) Iterations() []*IterationResult {
	var all []*IterationResult
	for _, t := range rr.Trials {
		all = append(all, t.Iterations...)
	}

	return all
}

// Primary aggregates the primaries of every iteration of every fork.
func (rr *RunResult) Primary() (Result, error) {
	rr.once.Do(rr.compute)

	return rr.primary, rr.err
}

// Secondaries aggregates each secondary label over every iteration of every
// fork and appends the primary's derivatives.
func (rr *RunResult) Secondaries() ([]Result, error) {
	rr.once.Do(rr.compute)

	return rr.secondaries, rr.err
}

func (rr *RunResult) compute() {
	var trial []Result
	for _, t := range rr.Trials {
		t.computed = true
		trial = append(trial, t.trialResults...)
	}
	rr.primary, rr.secondaries, rr.err = aggregateIterations(rr.Params, rr.Iterations(), trial)
}

func aggregateIterations(
	bp infra.BenchmarkParams,
	iterations []*IterationResult,
	trial []Result,
) (Result, []Result, error) {
	if len(iterations) == 0 {
		return Result{}, nil, fmt.Errorf("%s: %w", bp.Identity(), ErrNoResults)
	}

	primaries := make([]Result, 0, len(iterations))
	bySecondary := make(map[string][]Result)
	var labels []string

	for _, ir := range iterations {
		p, err := ir.Primary()
		if err != nil {
			return Result{}, nil, err
		}
		primaries = append(primaries, p)

		secs, err := ir.Secondaries()
		if err != nil {
			return Result{}, nil, err
		}
		for _, s := range secs {
			if _, ok := bySecondary[s.Label]; !ok {
				labels = append(labels, s.Label)
			}
			bySecondary[s.Label] = append(bySecondary[s.Label], s)
		}
	}

	for _, r := range trial {
		if _, ok := bySecondary[r.Label]; !ok {
			labels = append(labels, r.Label)
		}
		bySecondary[r.Label] = append(bySecondary[r.Label], r)
	}

	primary, err := IterationAggregate(primaries)
	if err != nil {
		return Result{}, nil, fmt.Errorf("%s primary: %w", bp.Identity(), err)
	}

	secondaries := make([]Result, 0, len(labels)+len(DerivativePercentiles))
	for _, label := range labels {
		s, err := IterationAggregate(bySecondary[label])
		if err != nil {
			return Result{}, nil, fmt.Errorf("%s secondary %q: %w", bp.Identity(), label, err)
		}
		secondaries = append(secondaries, s)
	}
	secondaries = append(secondaries, Derivatives(primary)...)

	return primary, secondaries, nil
}
