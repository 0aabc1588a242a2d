package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/loop"
	"github.com/weiihann/hotloop/profile"
	"github.com/weiihann/hotloop/results"
)

// trialConfig is everything one trial needs inside the process that runs
// the benchmark, whether that is a fork or the host.
type trialConfig struct {
	bench     *bench.Benchmark
	params    infra.BenchmarkParams
	profilers *profile.Set
	pin       bool
	logger    *slog.Logger
	// report receives every finished iteration, warm-up included. An error
	// stops the trial.
	report func(ir *results.IterationResult) error
}

type phase struct {
	ip      infra.IterationParams
	threads int
	warmup  bool
}

// phases lists the iteration phases of a trial. A second warm-up phase at
// the measurement thread count is added when the warm-up ran with another
// count and rewarming was asked for.
func phases(bp infra.BenchmarkParams) []phase {
	var out []phase
	if bp.Warmup.Count > 0 {
		wt := bp.ThreadsFor(true)
		out = append(out, phase{ip: bp.Warmup, threads: wt, warmup: true})
		if bp.RewarmOnChange && wt != bp.Threads {
			out = append(out, phase{ip: bp.Warmup, threads: bp.Threads, warmup: true})
		}
	}

	return append(out, phase{ip: bp.Measurement, threads: bp.Threads})
}

// forkStartupGrace covers process start, trial setup and the link round
// trips of a fork.
const forkStartupGrace = time.Minute

// forkTimeout bounds the wall time of one fork: every iteration may run its
// own time plus the iteration timeout. Zero means no bound.
func forkTimeout(bp infra.BenchmarkParams) time.Duration {
	if bp.Timeout <= 0 {
		return 0
	}

	d := forkStartupGrace
	for _, p := range phases(bp) {
		d += time.Duration(p.ip.Count) * (p.ip.Time + bp.Timeout)
	}

	return d
}

// runIterations runs the warm-up and measurement iterations of one trial and
// returns the measurement iterations completed, even when a later iteration
// failed.
func runIterations(ctx context.Context, cfg trialConfig) (measured []*results.IterationResult, err error) {
	bp := cfg.params
	logger := cfg.logger.With(slog.String("benchmark", bp.Identity()))

	exec, err := loop.NewExecutor(cfg.bench, bp, cfg.pin, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := exec.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	all := phases(bp)
	total := 0
	for _, ph := range all {
		total += ph.ip.Count
	}

	run, warmups := 0, 0
	for _, ph := range all {
		for i := 1; i <= ph.ip.Count; i++ {
			run++
			index := i
			if ph.warmup {
				warmups++
				index = warmups
			}

			ctl := infra.NewControl(bp, ph.ip, ph.threads, ph.warmup)
			ctl.Index = index
			ctl.FirstIteration = run == 1
			ctl.LastIteration = run == total

			ir, err := runIteration(ctx, exec, cfg, ctl)
			if err != nil {
				return measured, err
			}
			if !ph.warmup {
				measured = append(measured, ir)
			}
			if err := cfg.report(ir); err != nil {
				return measured, fmt.Errorf("report iteration %d: %w", index, err)
			}
		}
	}

	return measured, nil
}

func runIteration(
	ctx context.Context,
	exec *loop.Executor,
	cfg trialConfig,
	ctl *infra.Control,
) (*results.IterationResult, error) {
	bp := cfg.params

	if !ctl.Warmup {
		if err := cfg.profilers.BeforeIteration(bp, ctl.Iteration); err != nil {
			return nil, err
		}
	}

	out, runErr := exec.RunIteration(ctx, ctl)

	var meta results.IterationMeta
	if out != nil {
		meta = out.Meta
	}

	var secondaries []results.Result
	if !ctl.Warmup {
		rs, err := cfg.profilers.AfterIteration(bp, ctl.Iteration, meta)
		if runErr == nil && err != nil {
			return nil, err
		}
		secondaries = rs
	}
	if runErr != nil {
		return nil, runErr
	}

	ir := results.NewIterationResult(bp, ctl.Iteration, ctl.Index, meta)
	ir.Warmup = ctl.Warmup
	if err := ir.AddResults(out.Results...); err != nil {
		return nil, err
	}
	if err := ir.AddResults(secondaries...); err != nil {
		return nil, err
	}

	// Secondaries of one label must aggregate cleanly.
	if _, err := ir.Secondaries(); err != nil {
		return nil, err
	}

	return ir, nil
}
