// Package runner drives a benchmark run. The host side expands the run
// configuration into trials and executes each one either in-process or in
// forked copies of the benchmark binary; the child side, entered through
// ForkedMain, runs the iterations of one fork and streams them back over an
// HTTP link.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/harness"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/options"
	"github.com/weiihann/hotloop/profile"
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/telemetry"
	"github.com/weiihann/hotloop/wire"
)

var tracer = telemetry.Tracer()

// Outcome is what a run produced.
type Outcome struct {
	RunID string
	// Results holds one entry per trial that measured anything, in plan
	// order.
	Results []*results.RunResult
	// Failures lists the benchmarks that failed while the run went on.
	Failures []*BenchmarkError
}

// Runner executes benchmark runs.
type Runner struct {
	Registry *bench.Registry
	Options  options.Options
	Logger   *slog.Logger
	Metrics  *telemetry.Metrics
	Listener Listener

	// Executable is the binary forks run. Empty means the running
	// executable, unless the options name one.
	Executable string
	// OutputRoot holds the captured output of forks. Empty means the
	// system temporary directory.
	OutputRoot string
	PinThreads bool
}

// New creates a Runner for the benchmarks in reg.
func New(reg *bench.Registry, o options.Options, logger *slog.Logger) *Runner {
	return &Runner{
		Registry: reg,
		Options:  o,
		Logger:   logger,
		Listener: nopListener{},
	}
}

// Run executes every planned trial. Configuration errors fail before any
// benchmark starts. A failing benchmark stops the run only when
// fail-on-error is set; the error is then a *BenchmarkError. Results that
// cannot be aggregated always stop the run.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "hotloop.run")
	defer span.End()

	out, err := r.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return out, err
	}
	span.SetStatus(codes.Ok, "")

	return out, nil
}

func (r *Runner) run(ctx context.Context) (*Outcome, error) {
	if r.Listener == nil {
		r.Listener = nopListener{}
	}

	trials, err := Expand(r.Registry, r.Options)
	if err != nil {
		return nil, err
	}

	// Profiler configuration problems are found before anything runs.
	for _, t := range trials {
		if _, err := profile.Instantiate(t.Options.Profilers, telemetry.Discard()); err != nil {
			return nil, fmt.Errorf("%s: %w", t.Params.Identity(), err)
		}
	}

	out := &Outcome{RunID: uuid.NewString()}
	r.Logger.Info("starting run",
		slog.String("run", out.RunID),
		slog.Int("trials", len(trials)),
	)

	var link *linkServer
	defer func() {
		if link != nil {
			link.close()
		}
	}()

	for i, t := range trials {
		r.Metrics.SetPending(len(trials) - i)

		if err := ctx.Err(); err != nil {
			return out, err
		}
		if t.Params.Forks > 0 && link == nil {
			if link, err = startLink(r.Logger); err != nil {
				return out, err
			}
		}

		rr, err := r.runBenchmark(ctx, t, out.RunID, link)
		if rr != nil {
			out.Results = append(out.Results, rr)
		}
		r.Listener.BenchmarkFinished(t.Params, rr, err)
		if err == nil {
			continue
		}

		if fatal(err) {
			return out, err
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		berr := &BenchmarkError{Benchmark: t.Params.Identity(), Err: err}
		r.Metrics.BenchmarkFailed(t.Params.Benchmark)
		r.Logger.Error("benchmark failed",
			slog.String("benchmark", berr.Benchmark),
			slog.String("error", err.Error()),
		)
		out.Failures = append(out.Failures, berr)

		if t.Options.FailOnError.OrElse(false) {
			return out, berr
		}
	}
	r.Metrics.SetPending(0)

	return out, nil
}

// runBenchmark runs one trial and returns what it measured. Both values can
// be set: completed forks, and the completed iterations of a failed fork,
// are kept.
func (r *Runner) runBenchmark(
	ctx context.Context,
	t Trial,
	runID string,
	link *linkServer,
) (*results.RunResult, error) {
	bp := t.Params
	ctx, span := tracer.Start(ctx, "hotloop.benchmark", trace.WithAttributes(
		attribute.String("benchmark", bp.Identity()),
		attribute.String("mode", bp.Mode.String()),
		attribute.Int("threads", bp.Threads),
		attribute.Int("forks", bp.Forks),
	))
	defer span.End()

	r.Listener.BenchmarkStarted(bp)

	var (
		trials []*results.BenchmarkResult
		runErr error
	)
	if bp.Forks == 0 {
		var br *results.BenchmarkResult
		br, runErr = r.runHosted(ctx, t)
		if br != nil {
			trials = append(trials, br)
		}
	} else {
		trials, runErr = r.runForks(ctx, t, runID, link)
	}

	rr, err := summarize(bp, trials)
	if err != nil && (runErr == nil || fatal(err)) {
		runErr = err
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	}

	if rr != nil {
		if p, err := rr.Primary(); err == nil {
			r.Metrics.SetScore(bp.Benchmark, bp.Mode.String(), p.Unit, p.Score())
		}
	}

	return rr, runErr
}

// summarize combines the trials that measured anything. Aggregation errors
// surface here rather than when the results are first printed.
func summarize(bp infra.BenchmarkParams, trials []*results.BenchmarkResult) (*results.RunResult, error) {
	var kept []*results.BenchmarkResult
	for _, t := range trials {
		if len(t.Iterations) > 0 {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%s: %w", bp.Identity(), results.ErrNoResults)
	}

	rr, err := results.NewRunResult(kept)
	if err != nil {
		return nil, err
	}
	if _, err := rr.Primary(); err != nil {
		return nil, err
	}
	if _, err := rr.Secondaries(); err != nil {
		return nil, err
	}

	return rr, nil
}

// runHosted runs a trial inside this process. External profilers need a
// process to wrap, so they are skipped.
func (r *Runner) runHosted(ctx context.Context, t Trial) (*results.BenchmarkResult, error) {
	bp := t.Params

	internal, external := profile.Split(t.Options.Profilers)
	for _, c := range external {
		r.Logger.Warn("external profiler needs a forked run, skipping",
			slog.String("profiler", c.Name),
		)
		r.Metrics.ProfilerSkipped(c.Name)
	}

	set, err := profile.Instantiate(internal, r.Logger)
	if err != nil {
		return nil, err
	}

	measured, runErr := runIterations(ctx, trialConfig{
		bench:     t.Bench,
		params:    bp,
		profilers: set,
		pin:       r.PinThreads,
		logger:    r.Logger,
		report: func(ir *results.IterationResult) error {
			r.Metrics.IterationFinished(ir.Warmup)
			r.Listener.IterationFinished(ir)

			return nil
		},
	})

	br, err := results.NewBenchmarkResult(bp, measured)
	if err != nil {
		return nil, err
	}

	return br, runErr
}

// runForks runs the warm-up forks, whose output is thrown away, and then
// the measured forks. It stops at the first failing fork.
func (r *Runner) runForks(
	ctx context.Context,
	t Trial,
	runID string,
	link *linkServer,
) ([]*results.BenchmarkResult, error) {
	bp := t.Params

	for i := 1; i <= bp.WarmupForks; i++ {
		if _, err := r.runFork(ctx, t, runID, link, i, true); err != nil {
			return nil, err
		}
	}

	var trials []*results.BenchmarkResult
	for i := 1; i <= bp.Forks; i++ {
		br, err := r.runFork(ctx, t, runID, link, i, false)
		if br != nil {
			trials = append(trials, br)
		}
		if err != nil {
			return trials, err
		}
	}

	return trials, nil
}

func (r *Runner) runFork(
	ctx context.Context,
	t Trial,
	runID string,
	link *linkServer,
	fork int,
	warmup bool,
) (br *results.BenchmarkResult, err error) {
	bp := t.Params
	total := bp.Forks
	if warmup {
		total = bp.WarmupForks
	}

	ctx, span := tracer.Start(ctx, "hotloop.fork", trace.WithAttributes(
		attribute.String("benchmark", bp.Identity()),
		attribute.Int("fork", fork),
		attribute.Bool("warmup", warmup),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	r.Listener.ForkStarted(bp, fork, total, warmup)

	internal, external := profile.Split(t.Options.Profilers)
	ext := &profile.Set{}
	if warmup {
		internal = nil
	} else {
		if ext, err = profile.Instantiate(external, r.Logger); err != nil {
			return nil, err
		}
		if err := ext.BeforeTrial(bp); err != nil {
			return nil, err
		}
	}

	token := uuid.NewString()
	s := &session{
		plan: wire.Plan{
			Version:    wire.Version,
			RunID:      runID,
			Fork:       fork,
			Warmup:     warmup,
			Benchmark:  wire.FromParams(bp),
			Profilers:  wire.FromProfilers(internal),
			PinThreads: r.PinThreads,
			LogLevel:   r.Options.Verbosity.OrElse(telemetry.VerbosityNormal),
		},
		params:   bp,
		listener: r.Listener,
		metrics:  r.Metrics,
	}
	link.open(token, s)
	defer link.drop(token)

	self, err := r.executable()
	if err != nil {
		return nil, err
	}
	h := harness.NewRunner(bp.Identity(), harness.WrapCommand(self, t.Options), r.Logger)

	start := time.Now()
	res, runErr := h.Run(ctx, harness.RunConfig{
		OutputDir: harness.OutputDir(r.OutputRoot, runID),
		Prefix:    ext.Prefix(bp),
		ExtraArgs: ext.Args(bp),
		Env: []string{
			wire.EnvLink + "=" + link.url,
			wire.EnvToken + "=" + token,
		},
		Timeout: forkTimeout(bp),
	})
	r.Metrics.ForkFinished(warmup, runErr, time.Since(start))

	measured, allOps, done, forkErr := s.outcome()
	switch {
	case forkErr != nil:
		err = fmt.Errorf("fork %d: %w", fork, forkErr)
	case runErr != nil:
		err = runErr
	case !done:
		err = fmt.Errorf("fork %d exited without reporting completion", fork)
	}

	if res != nil {
		r.Logger.Debug("fork finished",
			slog.String("benchmark", bp.Identity()),
			slog.Int("fork", fork),
			slog.Duration("wall_time", res.Elapsed),
			slog.Uint64("peak_rss_bytes", res.PeakMemoryBytes),
		)
	}

	if warmup {
		cleanup(res, err)

		return nil, err
	}

	br, berr := results.NewBenchmarkResult(bp, measured)
	if berr != nil {
		return nil, berr
	}

	if res != nil {
		trialOut := profile.TrialOutput{
			AllOps:     allOps,
			StdoutPath: res.StdoutPath,
			StderrPath: res.StderrPath,
		}
		for _, pr := range ext.AfterTrial(bp, trialOut, r.Logger) {
			if err := br.AddTrialResult(pr); err != nil {
				return nil, err
			}
		}
	}
	cleanup(res, err)

	return br, err
}

// cleanup removes the captured output of a fork that succeeded. A failed
// fork's output is kept for inspection.
func cleanup(res *harness.Result, err error) {
	if res != nil && err == nil {
		res.Cleanup()
	}
}

func (r *Runner) executable() (string, error) {
	if r.Executable != "" {
		return r.Executable, nil
	}

	self, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate benchmark binary: %w", err)
	}

	return self, nil
}
