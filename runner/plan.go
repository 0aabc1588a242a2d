package runner

import (
	"fmt"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/options"
)

// Trial is one planned measurement: a benchmark in one mode with one set of
// parameter bindings.
type Trial struct {
	Bench  *bench.Benchmark
	Params infra.BenchmarkParams
	// Options is the run configuration layered over the benchmark's own
	// defaults.
	Options options.Options
}

// Expand turns the run configuration into trials: every selected benchmark,
// in every requested mode, for every combination of parameter values.
func Expand(reg *bench.Registry, o options.Options) ([]Trial, error) {
	selected, err := reg.Select(o.Includes, o.Excludes)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, ErrNoBenchmarks
	}

	var trials []Trial
	for _, b := range selected {
		layered := o.WithParent(b.Defaults)

		combos, err := bench.Combinations(b.Params, layered.Params)
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", b.Name, err)
		}

		var methods []string
		if b.IsGroup() {
			methods = b.MethodNames()
		}

		for _, mode := range layered.ModesOrDefault() {
			for _, params := range combos {
				bp, err := layered.Resolve(options.Target{
					Name:    b.Name,
					Methods: methods,
					Ratios:  b.Ratios(),
					Mode:    mode,
					Params:  params,
				})
				if err != nil {
					return nil, err
				}
				trials = append(trials, Trial{Bench: b, Params: bp, Options: layered})
			}
		}
	}

	return trials, nil
}
