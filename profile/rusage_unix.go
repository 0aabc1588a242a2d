//go:build unix

package profile

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

const rusageName = "rusage"

// rusageProfiler diffs getrusage(RUSAGE_SELF) across an iteration. The
// numbers cover the whole process, harness threads included.
type rusageProfiler struct {
	before unix.Rusage
}

func newRusage(init string, _ *slog.Logger) (Profiler, error) {
	if _, err := ParseInit(rusageName, init); err != nil {
		return nil, err
	}

	return &rusageProfiler{}, nil
}

func (p *rusageProfiler) Name() string { return rusageName }

func (p *rusageProfiler) Description() string {
	return "Process resource usage: CPU time, page faults, context switches"
}

func (p *rusageProfiler) BeforeIteration(infra.BenchmarkParams, infra.IterationParams) error {
	if err := unix.Getrusage(unix.RUSAGE_SELF, &p.before); err != nil {
		return fmt.Errorf("getrusage: %w", err)
	}

	return nil
}

func (p *rusageProfiler) AfterIteration(
	_ infra.BenchmarkParams,
	_ infra.IterationParams,
	meta results.IterationMeta,
) ([]results.Result, error) {
	var after unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &after); err != nil {
		return nil, fmt.Errorf("getrusage: %w", err)
	}

	utime := float64(after.Utime.Nano()-p.before.Utime.Nano()) / 1e6
	stime := float64(after.Stime.Nano()-p.before.Stime.Nano()) / 1e6

	out := []results.Result{
		results.NewScalar(results.Secondary, "rusage.utime", utime, "ms", results.Sum),
		results.NewScalar(results.Secondary, "rusage.stime", stime, "ms", results.Sum),
		results.NewScalar(results.Secondary, "rusage.minflt",
			float64(int64(after.Minflt)-int64(p.before.Minflt)), "#", results.Sum),
		results.NewScalar(results.Secondary, "rusage.majflt",
			float64(int64(after.Majflt)-int64(p.before.Majflt)), "#", results.Sum),
		results.NewScalar(results.Secondary, "rusage.nvcsw",
			float64(int64(after.Nvcsw)-int64(p.before.Nvcsw)), "#", results.Sum),
		results.NewScalar(results.Secondary, "rusage.nivcsw",
			float64(int64(after.Nivcsw)-int64(p.before.Nivcsw)), "#", results.Sum),
	}
	if meta.AllOps > 0 {
		cpuNsPerOp := (utime + stime) * 1e6 / float64(meta.AllOps)
		out = append(out, results.NewScalar(results.Secondary, "rusage.cpu.norm", cpuNsPerOp, "ns/op", results.Avg))
	}

	return out, nil
}

var _ Internal = (*rusageProfiler)(nil)
