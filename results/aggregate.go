package results

import (
	"errors"
	"fmt"
	"strings"

	"github.com/weiihann/hotloop/stats"
)

// ErrMismatch is the sentinel behind every MismatchError.
var ErrMismatch = errors.New("results cannot be aggregated")

// ErrNoResults is returned when an aggregator is given nothing to combine.
var ErrNoResults = errors.New("no results to aggregate")

// MismatchError reports an attempt to combine results that describe
// different things. It always indicates a harness bug and is never
// recoverable.
type MismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("cannot aggregate results with different %s: %q and %q",
		e.Field, e.Want, e.Got)
}

func (e *MismatchError) Unwrap() error { return ErrMismatch }

// Level is an aggregation step.
type Level int

const (
	// ThreadLevel combines the per-thread results of one iteration.
	ThreadLevel Level = iota + 1
	// IterationLevel combines iteration results across iterations and forks.
	IterationLevel
)

// ThreadAggregate combines the results reported by the threads of one
// iteration.
func ThreadAggregate(rs []Result) (Result, error) {
	return Aggregate(ThreadLevel, rs)
}

// IterationAggregate combines iteration-level results.
func IterationAggregate(rs []Result) (Result, error) {
	return Aggregate(IterationLevel, rs)
}

// Aggregate applies the aggregation law of the results' kind at level.
//
//	throughput         thread: sum of scores, iteration: mean of scores
//	average-time       pooled (total time / total ops) at both levels
//	sample, ss         raw samples concatenated at both levels
//	scalar, derivative policy of the inputs applied to their scores
//	text               joined
func Aggregate(level Level, rs []Result) (Result, error) {
	if len(rs) == 0 {
		return Result{}, ErrNoResults
	}
	if err := checkCompatible(rs); err != nil {
		return Result{}, err
	}

	first := rs[0]
	out := Result{
		Kind:   first.Kind,
		Role:   first.Role,
		Label:  first.Label,
		Unit:   first.Unit,
		Policy: first.Policy,
	}

	switch first.Kind {
	case KindThroughput:
		out.Stats = scores(rs)
		if level == ThreadLevel {
			out.Policy = Sum
		} else {
			out.Policy = Avg
		}

	case KindAverageTime:
		w := stats.NewWeighted()
		for _, r := range rs {
			src, ok := r.Stats.(*stats.Weighted)
			if !ok {
				return Result{}, fmt.Errorf("%s result %q has %T statistics: %w",
					r.Kind, r.Label, r.Stats, ErrMismatch)
			}
			w.AddAll(src)
		}
		out.Stats = w

	case KindSampleTime, KindSingleShot:
		l := stats.NewList()
		for _, r := range rs {
			src, ok := r.Stats.(*stats.List)
			if !ok {
				return Result{}, fmt.Errorf("%s result %q has %T statistics: %w",
					r.Kind, r.Label, r.Stats, ErrMismatch)
			}
			l.AddAll(src)
		}
		out.Stats = l

	case KindScalar, KindScalarDerivative:
		out.Stats = scores(rs)

	case KindText:
		parts := make([]string, 0, len(rs))
		for _, r := range rs {
			if r.Text != "" {
				parts = append(parts, r.Text)
			}
		}
		out.Text = strings.Join(parts, "\n")

	default:
		return Result{}, fmt.Errorf("unknown result kind %v", first.Kind)
	}

	return out, nil
}

// scores collects the child scores. Children without data are skipped.
func scores(rs []Result) *stats.List {
	l := stats.NewList()
	for _, r := range rs {
		if r.SampleCount() == 0 {
			continue
		}
		l.Add(r.Score())
	}

	return l
}

func checkCompatible(rs []Result) error {
	first := rs[0]
	for _, r := range rs[1:] {
		switch {
		case r.Kind != first.Kind:
			return &MismatchError{Field: "kind", Want: first.Kind.String(), Got: r.Kind.String()}
		case r.Role != first.Role:
			return &MismatchError{Field: "role", Want: first.Role.String(), Got: r.Role.String()}
		case r.Label != first.Label:
			return &MismatchError{Field: "label", Want: first.Label, Got: r.Label}
		case r.Unit != first.Unit:
			return &MismatchError{Field: "unit", Want: first.Unit, Got: r.Unit}
		case r.Policy != first.Policy:
			return &MismatchError{Field: "policy", Want: first.Policy.String(), Got: r.Policy.String()}
		}
	}

	return nil
}
