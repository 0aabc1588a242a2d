package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/stats"
)

// Progress prints a run as it happens, one block per benchmark.
type Progress struct {
	w io.Writer
	// Extra also prints the secondary metrics of every iteration.
	Extra bool
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

func (p *Progress) BenchmarkStarted(bp infra.BenchmarkParams) {
	fmt.Fprintf(p.w, "# Benchmark: %s\n", bp.Benchmark)
	fmt.Fprintf(p.w, "# Mode: %s, %s\n", bp.Mode, bp.Mode.Description())
	fmt.Fprintf(p.w, "# Threads: %s\n", bp.ThreadLabel())
	fmt.Fprintf(p.w, "# Warmup: %s\n", bp.Warmup)
	fmt.Fprintf(p.w, "# Measurement: %s\n", bp.Measurement)
	if len(bp.Params) > 0 {
		parts := make([]string, len(bp.Params))
		for i, b := range bp.Params {
			parts[i] = b.Name + " = " + b.Value.Raw
		}
		fmt.Fprintf(p.w, "# Parameters: (%s)\n", strings.Join(parts, ", "))
	}
	if bp.Forks == 0 {
		fmt.Fprintln(p.w, "# Fork: N/A, test runs in the host process")
	}
	fmt.Fprintln(p.w)
}

func (p *Progress) ForkStarted(_ infra.BenchmarkParams, fork, total int, warmup bool) {
	if warmup {
		fmt.Fprintf(p.w, "# Warmup Fork: %d of %d\n", fork, total)

		return
	}
	fmt.Fprintf(p.w, "# Fork: %d of %d\n", fork, total)
}

func (p *Progress) IterationFinished(ir *results.IterationResult) {
	label := "Iteration"
	if ir.Warmup {
		label = "# Warmup Iteration"
	}

	primary, err := ir.Primary()
	if err != nil {
		fmt.Fprintf(p.w, "%s %3d: <%v>\n", label, ir.Index, err)

		return
	}
	fmt.Fprintf(p.w, "%s %3d: %s %s\n", label, ir.Index, formatScore(primary.Score()), primary.Unit)

	if ir.Warmup || !p.Extra {
		return
	}
	secondaries, err := ir.Secondaries()
	if err != nil {
		fmt.Fprintf(p.w, "                 <%v>\n", err)

		return
	}
	for _, s := range secondaries {
		if s.Kind == results.KindText {
			continue
		}
		fmt.Fprintf(p.w, "                 ·%s: %s %s\n", s.Label, formatScore(s.Score()), s.Unit)
	}
}

func (p *Progress) BenchmarkFinished(bp infra.BenchmarkParams, rr *results.RunResult, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "<failure>\n\n%v\n\n", err)
	}
	if rr == nil {
		fmt.Fprintln(p.w)

		return
	}

	primary, perr := rr.Primary()
	if perr != nil {
		fmt.Fprintf(p.w, "<%v>\n\n", perr)

		return
	}

	fmt.Fprintf(p.w, "\nResult %q:\n", bp.Identity())
	p.summary(primary)
	p.outliers(rr)

	secondaries, serr := rr.Secondaries()
	if serr == nil {
		for _, s := range secondaries {
			fmt.Fprintf(p.w, "\nSecondary result %q:\n", bp.Benchmark+":"+s.Label)
			p.summary(s)
		}
	}
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w)
}

func (p *Progress) outliers(rr *results.RunResult) {
	raw, err := iterationScores(rr)
	if err != nil {
		return
	}
	all := stats.NewList()
	for _, fork := range raw {
		all.AddAll(stats.NewList(fork...))
	}
	if all.N() < 4 {
		return
	}

	o := stats.Outliers(all)
	fmt.Fprintf(p.w, "  outliers: %d mild, %d extreme of %d iterations\n", o.Mild, o.Extreme, all.N())
}

func (p *Progress) summary(r results.Result) {
	if r.Kind == results.KindText {
		for _, line := range strings.Split(strings.TrimRight(r.Text, "\n"), "\n") {
			fmt.Fprintf(p.w, "  %s\n", line)
		}

		return
	}

	score := formatScore(r.Score())
	if e := r.ScoreError(); !math.IsNaN(e) {
		fmt.Fprintf(p.w, "  %s ±(99.9%%) %s %s [%s]\n", score, formatScore(e), r.Unit, r.Policy)
	} else {
		fmt.Fprintf(p.w, "  %s %s [%s]\n", score, r.Unit, r.Policy)
	}

	s := r.Stats
	if s == nil || s.N() < 2 {
		return
	}
	fmt.Fprintf(p.w, "  (min, avg, max) = (%s, %s, %s), stdev = %s\n",
		formatScore(s.Min()), formatScore(s.Mean()), formatScore(s.Max()),
		formatScore(s.StandardDeviation()))

	ci := r.ScoreInterval()
	if ci.Valid() {
		fmt.Fprintf(p.w, "  CI (99.9%%): [%s, %s] (assumes normal distribution)\n",
			formatScore(ci.Lower), formatScore(ci.Upper))
	}
}
