package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/profile"
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/telemetry"
	"github.com/weiihann/hotloop/wire"
)

// ForkedMain runs the trial a parent runner forked this process for. It
// reports false, doing nothing, when the process is not such a fork. The
// benchmark must be registered in reg under the name the parent planned.
func ForkedMain(ctx context.Context, reg *bench.Registry) (bool, error) {
	link := os.Getenv(wire.EnvLink)
	if link == "" {
		return false, nil
	}

	client := newLinkClient(link, os.Getenv(wire.EnvToken))

	return true, runForked(ctx, reg, client)
}

func runForked(ctx context.Context, reg *bench.Registry, client *linkClient) error {
	plan, err := client.plan(ctx)
	if err != nil {
		return fmt.Errorf("fetch plan: %w", err)
	}

	level, err := telemetry.ParseVerbosity(plan.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	logger := telemetry.NewLogger(os.Stderr, level, false).With(
		slog.String("run", plan.RunID),
		slog.Int("fork", plan.Fork),
	)

	if err := executePlan(ctx, reg, plan, client, logger); err != nil {
		identity := plan.Benchmark.Benchmark
		if bp, perr := wire.ToParams(plan.Benchmark); perr == nil {
			identity = bp.Identity()
		}
		msg := wire.Failure{
			Version:  wire.Version,
			Fork:     plan.Fork,
			Identity: identity,
			Message:  err.Error(),
		}
		if ferr := client.failure(ctx, msg); ferr != nil {
			logger.Error("could not report failure", slog.String("error", ferr.Error()))
		}

		return err
	}

	return client.done(ctx, wire.Done{Version: wire.Version, Fork: plan.Fork})
}

func executePlan(
	ctx context.Context,
	reg *bench.Registry,
	plan wire.Plan,
	client *linkClient,
	logger *slog.Logger,
) error {
	bp, err := wire.ToParams(plan.Benchmark)
	if err != nil {
		return err
	}

	b, ok := reg.Lookup(bp.Benchmark)
	if !ok {
		return fmt.Errorf("benchmark %s is not registered in this binary", bp.Benchmark)
	}

	set, err := profile.Instantiate(wire.ToProfilers(plan.Profilers), logger)
	if err != nil {
		return err
	}

	logger.Debug("fork started",
		slog.String("benchmark", bp.Identity()),
		slog.Bool("warmup_fork", plan.Warmup),
	)

	_, err = runIterations(ctx, trialConfig{
		bench:     b,
		params:    bp,
		profilers: set,
		pin:       plan.PinThreads,
		logger:    logger,
		report: func(ir *results.IterationResult) error {
			msg, err := wire.FromIterationResult(plan.Fork, ir)
			if err != nil {
				return err
			}

			return client.iteration(ctx, msg)
		},
	})

	return err
}
