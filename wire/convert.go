package wire

import (
	"fmt"
	"time"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/options"
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/stats"
)

// FromParams encodes bp.
func FromParams(bp infra.BenchmarkParams) BenchmarkParams {
	out := BenchmarkParams{
		Benchmark:            bp.Benchmark,
		Methods:              bp.Methods,
		Mode:                 bp.Mode.String(),
		Threads:              bp.Threads,
		ThreadGroups:         bp.ThreadGroups,
		WarmupThreads:        bp.WarmupThreads,
		RewarmOnThreadChange: bp.RewarmOnChange,
		SyncIterations:       bp.SyncIterations,
		Forks:                bp.Forks,
		WarmupForks:          bp.WarmupForks,
		Warmup:               FromIteration(bp.Warmup),
		Measurement:          FromIteration(bp.Measurement),
		TimeUnit:             bp.TimeUnit.String(),
		OpsPerInvocation:     bp.OpsPerInvocation,
		TimeoutNanos:         bp.Timeout.Nanoseconds(),
	}
	for _, b := range bp.Params {
		out.Params = append(out.Params, Param{Name: b.Name, Kind: b.Value.Kind.String(), Value: b.Value.Raw})
	}

	return out
}

// ToParams decodes p.
func ToParams(p BenchmarkParams) (infra.BenchmarkParams, error) {
	mode, err := infra.ParseMode(p.Mode)
	if err != nil {
		return infra.BenchmarkParams{}, err
	}
	unit, err := infra.ParseTimeUnit(p.TimeUnit)
	if err != nil {
		return infra.BenchmarkParams{}, err
	}

	var bindings infra.Params
	for _, w := range p.Params {
		kind, err := infra.ParseKind(w.Kind)
		if err != nil {
			return infra.BenchmarkParams{}, fmt.Errorf("param %s: %w", w.Name, err)
		}
		v, err := infra.ParseValue(kind, w.Value)
		if err != nil {
			return infra.BenchmarkParams{}, fmt.Errorf("param %s: %w", w.Name, err)
		}
		bindings = append(bindings, infra.Binding{Name: w.Name, Value: v})
	}

	return infra.BenchmarkParams{
		Benchmark:        p.Benchmark,
		Methods:          p.Methods,
		Mode:             mode,
		Threads:          p.Threads,
		ThreadGroups:     p.ThreadGroups,
		WarmupThreads:    p.WarmupThreads,
		RewarmOnChange:   p.RewarmOnThreadChange,
		SyncIterations:   p.SyncIterations,
		Forks:            p.Forks,
		WarmupForks:      p.WarmupForks,
		Warmup:           ToIteration(p.Warmup),
		Measurement:      ToIteration(p.Measurement),
		TimeUnit:         unit,
		OpsPerInvocation: p.OpsPerInvocation,
		Params:           bindings,
		Timeout:          time.Duration(p.TimeoutNanos),
	}, nil
}

// FromIteration encodes ip.
func FromIteration(ip infra.IterationParams) IterationParams {
	return IterationParams{Count: ip.Count, TimeNanos: ip.Time.Nanoseconds(), BatchSize: ip.BatchSize}
}

// ToIteration decodes ip.
func ToIteration(ip IterationParams) infra.IterationParams {
	return infra.IterationParams{Count: ip.Count, Time: time.Duration(ip.TimeNanos), BatchSize: ip.BatchSize}
}

// FromProfilers encodes profiler configurations.
func FromProfilers(cfgs []options.ProfilerConfig) []Profiler {
	out := make([]Profiler, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, Profiler{Name: c.Name, Init: c.Init})
	}

	return out
}

// ToProfilers decodes profiler configurations.
func ToProfilers(ps []Profiler) []options.ProfilerConfig {
	out := make([]options.ProfilerConfig, 0, len(ps))
	for _, p := range ps {
		out = append(out, options.ProfilerConfig{Name: p.Name, Init: p.Init})
	}

	return out
}

// FromResult encodes r.
func FromResult(r results.Result) (Result, error) {
	out := Result{
		Kind:   r.Kind.String(),
		Role:   r.Role.String(),
		Label:  r.Label,
		Unit:   r.Unit,
		Policy: r.Policy.String(),
		Text:   r.Text,
	}

	switch s := r.Stats.(type) {
	case nil:
	case *stats.List:
		out.Values = floats(s.Values())
	case *stats.Weighted:
		values, weights := s.Observations()
		out.Values = floats(values)
		out.Weights = floats(weights)
	default:
		return Result{}, fmt.Errorf("result %q: cannot encode statistics of type %T", r.Label, r.Stats)
	}

	if r.HasInterval() {
		ci := r.ScoreInterval()
		out.Interval = &Interval{Lower: Float(ci.Lower), Upper: Float(ci.Upper)}
	}

	return out, nil
}

// ToResult decodes r.
func ToResult(r Result) (results.Result, error) {
	kind, err := results.ParseKind(r.Kind)
	if err != nil {
		return results.Result{}, err
	}
	role, err := results.ParseRole(r.Role)
	if err != nil {
		return results.Result{}, err
	}
	policy, err := results.ParsePolicy(r.Policy)
	if err != nil {
		return results.Result{}, err
	}

	out := results.Result{
		Kind:   kind,
		Role:   role,
		Label:  r.Label,
		Unit:   r.Unit,
		Policy: policy,
		Text:   r.Text,
	}

	switch kind {
	case results.KindText:
	case results.KindAverageTime:
		if len(r.Weights) != len(r.Values) {
			return results.Result{}, fmt.Errorf("result %q: %d values but %d weights",
				r.Label, len(r.Values), len(r.Weights))
		}
		w := stats.NewWeighted()
		for i, v := range r.Values {
			w.AddValue(float64(v), float64(r.Weights[i]))
		}
		out.Stats = w
	default:
		l := stats.NewList()
		for _, v := range r.Values {
			l.Add(float64(v))
		}
		out.Stats = l
	}

	if r.Interval != nil {
		out = out.WithInterval(stats.Interval{Lower: float64(r.Interval.Lower), Upper: float64(r.Interval.Upper)})
	}

	return out, nil
}

// FromIterationResult encodes the raw contents of ir for the parent. Thread
// results are sent unaggregated so the parent applies the same laws.
func FromIterationResult(fork int, ir *results.IterationResult) (IterationResult, error) {
	out := IterationResult{
		Version:     Version,
		Fork:        fork,
		Identity:    ir.Benchmark.Identity(),
		Iteration:   FromIteration(ir.Iteration),
		Index:       ir.Index,
		Warmup:      ir.Warmup,
		AllOps:      ir.Meta.AllOps,
		MeasuredOps: ir.Meta.MeasuredOps,
	}

	add := func(r results.Result) error {
		w, err := FromResult(r)
		if err != nil {
			return err
		}
		out.Results = append(out.Results, w)

		return nil
	}
	for _, r := range ir.RawPrimaries() {
		if err := add(r); err != nil {
			return IterationResult{}, err
		}
	}
	for _, label := range ir.SecondaryLabels() {
		for _, r := range ir.RawSecondaries(label) {
			if err := add(r); err != nil {
				return IterationResult{}, err
			}
		}
	}

	return out, nil
}

// ToIterationResult decodes w against the parameters the parent planned. A
// message about another benchmark is rejected.
func ToIterationResult(bp infra.BenchmarkParams, w IterationResult) (*results.IterationResult, error) {
	if err := CheckVersion(w.Version); err != nil {
		return nil, err
	}
	if w.Identity != bp.Identity() {
		return nil, fmt.Errorf("iteration of %q reported for %q", w.Identity, bp.Identity())
	}

	ir := results.NewIterationResult(bp, ToIteration(w.Iteration), w.Index, results.IterationMeta{
		AllOps:      w.AllOps,
		MeasuredOps: w.MeasuredOps,
	})
	ir.Warmup = w.Warmup

	for _, wr := range w.Results {
		r, err := ToResult(wr)
		if err != nil {
			return nil, err
		}
		if err := ir.AddResult(r); err != nil {
			return nil, err
		}
	}

	return ir, nil
}

func floats(vs []float64) []Float {
	out := make([]Float, len(vs))
	for i, v := range vs {
		out[i] = Float(v)
	}

	return out
}
