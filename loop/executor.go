// Package loop runs benchmark iterations: it spreads workers over the
// benchmark's methods, drives the warm-up, measurement and warm-down phases
// of every worker and turns what they measured into thread-level results.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

// Output is what one iteration produced.
type Output struct {
	// Results holds one primary per worker and, for group benchmarks, one
	// secondary per worker labelled with its method.
	Results []results.Result
	Meta    results.IterationMeta
	Elapsed time.Duration
}

// Executor runs the iterations of one trial. It is not safe for concurrent
// use; iterations run one after another.
type Executor struct {
	bench  *bench.Benchmark
	params infra.BenchmarkParams
	pin    bool
	logger *slog.Logger

	trial    *trialState
	seq      uint64
	pinOnce  sync.Once
	closed   bool
	closeErr error
}

// NewExecutor prepares a trial of b. With pin set every worker is locked to
// an OS thread bound to its own CPU.
func NewExecutor(
	b *bench.Benchmark,
	bp infra.BenchmarkParams,
	pin bool,
	logger *slog.Logger,
) (*Executor, error) {
	if len(b.Methods) > 1 && len(bp.ThreadGroups) != len(b.Methods) {
		return nil, fmt.Errorf("%s: %d methods but %d thread groups: %w",
			b.Name, len(b.Methods), len(bp.ThreadGroups), infra.ErrThreadDistribution)
	}

	return &Executor{
		bench:  b,
		params: bp,
		pin:    pin,
		logger: logger.With(slog.String("benchmark", bp.Identity())),
		trial:  newTrialState(b, bp),
	}, nil
}

// RunIteration runs one iteration as described by ctl and blocks until every
// worker has finished.
func (e *Executor) RunIteration(ctx context.Context, ctl *infra.Control) (*Output, error) {
	if e.closed {
		return nil, errors.New("executor is closed")
	}
	e.seq++

	var ratios []int
	if len(e.bench.Methods) > 1 {
		ratios = e.params.ThreadGroups
	}
	table, err := infra.Distribute(ctl.Threads, ratios)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.params.Benchmark, err)
	}
	if procs := runtime.GOMAXPROCS(0); ctl.Threads > procs {
		e.logger.Warn("more workers than GOMAXPROCS, some workers may measure nothing",
			slog.Int("threads", ctl.Threads),
			slog.Int("gomaxprocs", procs),
			slog.Int("iteration", ctl.Index),
			slog.Bool("warmup", ctl.Warmup))
	}

	outs := make([]workerOutput, len(table))
	g, gctx := errgroup.WithContext(ctx)

	start := time.Now()
	for i, pos := range table {
		g.Go(func() error {
			out, err := e.work(ctl, pos)
			outs[i] = out

			return err
		})
	}

	workersDone := make(chan error, 1)
	go func() { workersDone <- g.Wait() }()

	if ctl.Benchmark.Mode.Timed() {
		timer := time.NewTimer(ctl.Iteration.Time)
		select {
		case <-timer.C:
		case <-gctx.Done():
			timer.Stop()
		}
		ctl.Done()
	}

	err = e.await(ctx, ctl, workersDone)
	elapsed := time.Since(start)
	if err != nil {
		return nil, err
	}

	return e.collect(table, outs, elapsed)
}

// await waits for the workers. Past the timeout it only complains: workers
// are never torn down mid-operation.
func (e *Executor) await(ctx context.Context, ctl *infra.Control, done <-chan error) error {
	var timeout <-chan time.Time
	if e.params.Timeout > 0 {
		t := time.NewTimer(e.params.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	cancelled := ctx.Done()
	for {
		select {
		case err := <-done:
			if err == nil && ctx.Err() != nil {
				return fmt.Errorf("%s: %w", e.params.Benchmark, ctx.Err())
			}

			return err
		case <-cancelled:
			cancelled = nil
			ctl.Fail()
		case <-timeout:
			timeout = nil
			e.logger.Warn("iteration exceeded its timeout, waiting for workers to finish",
				slog.Duration("timeout", e.params.Timeout),
				slog.Int("iteration", ctl.Index),
				slog.Bool("warmup", ctl.Warmup),
			)
		}
	}
}

func (e *Executor) work(ctl *infra.Control, pos infra.ThreadParams) (out workerOutput, err error) {
	method := ""
	defer func() {
		if r := recover(); r != nil {
			ctl.Fail()
			err = &ExecutionError{
				Benchmark: e.params.Benchmark,
				Method:    method,
				Thread:    pos.ThreadIndex,
				Phase:     PhaseBody,
				Err:       &PanicError{Value: r, Stack: debug.Stack()},
			}
		}
	}()

	if e.pin {
		// Stays locked on exit so the runtime discards the pinned thread.
		runtime.LockOSThread()
		if err := pinCPU(pos.ThreadIndex); err != nil {
			e.pinOnce.Do(func() {
				e.logger.Warn("running without cpu pinning", slog.String("reason", err.Error()))
			})
		}
	}

	b, err := e.trial.bind(pos)
	if err != nil {
		ctl.Fail()

		return workerOutput{}, &ExecutionError{
			Benchmark: e.params.Benchmark,
			Thread:    pos.ThreadIndex,
			Phase:     PhaseBind,
			Err:       err,
		}
	}
	method = b.method

	w := &worker{ctl: ctl, pos: pos, b: b, seq: e.seq}

	return w.run()
}

func (e *Executor) collect(table []infra.ThreadParams, outs []workerOutput, elapsed time.Duration) (*Output, error) {
	out := &Output{Elapsed: elapsed}
	group := len(e.bench.Methods) > 1

	for i, o := range outs {
		out.Meta.AllOps += o.allOps
		out.Meta.MeasuredOps += o.measuredOps
		out.Results = append(out.Results, o.primary)
		if group {
			name := e.bench.Methods[table[i].Subgroup].Name
			out.Results = append(out.Results, o.primary.WithLabel(results.Secondary, name))
		}
	}

	return out, nil
}

// Close runs the trial teardown hooks that have not run yet, which happens
// when the last iteration failed or used fewer workers than an earlier one.
func (e *Executor) Close() error {
	if e.closed {
		return e.closeErr
	}
	e.closed = true
	e.closeErr = e.trial.close()

	return e.closeErr
}
