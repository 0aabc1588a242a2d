package infra

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IterationParams describes one phase (warm-up or measurement) of a trial.
type IterationParams struct {
	Count     int           `json:"count"`
	Time      time.Duration `json:"time"`
	BatchSize int           `json:"batch_size"`
}

func (p IterationParams) String() string {
	if p.Count == 0 {
		return "none"
	}
	if p.BatchSize > 1 {
		return fmt.Sprintf("%d iterations, %s each, %d calls per op",
			p.Count, p.Time, p.BatchSize)
	}

	return fmt.Sprintf("%d iterations, %s each", p.Count, p.Time)
}

// BenchmarkParams is the fully resolved configuration of one benchmark
// trial. Values are attached to every result for provenance, and two results
// can only be combined if their identities match.
type BenchmarkParams struct {
	Benchmark string `json:"benchmark"`
	// Methods lists the member methods of a group benchmark in declaration
	// order. It is empty for single-method benchmarks.
	Methods          []string        `json:"methods,omitempty"`
	Mode             Mode            `json:"mode"`
	Threads          int             `json:"threads"`
	ThreadGroups     []int           `json:"thread_groups"`
	WarmupThreads    int             `json:"warmup_threads"`
	RewarmOnChange   bool            `json:"rewarm_on_thread_change"`
	SyncIterations   bool            `json:"sync_iterations"`
	Forks            int             `json:"forks"`
	WarmupForks      int             `json:"warmup_forks"`
	Warmup           IterationParams `json:"warmup"`
	Measurement      IterationParams `json:"measurement"`
	TimeUnit         TimeUnit        `json:"time_unit"`
	OpsPerInvocation int             `json:"ops_per_invocation"`
	Params           Params          `json:"params,omitempty"`
	Timeout          time.Duration   `json:"timeout"`
}

// Identity names the measurement: benchmark, mode and parameter bindings.
// Results with different identities must never be aggregated together.
func (p BenchmarkParams) Identity() string {
	var b strings.Builder
	b.WriteString(p.Benchmark)
	b.WriteString(" [")
	b.WriteString(p.Mode.String())
	b.WriteString("]")
	if len(p.Params) > 0 {
		b.WriteString(" (")
		b.WriteString(p.Params.Key())
		b.WriteString(")")
	}

	return b.String()
}

// SameIdentity reports whether p and o describe the same measurement.
func (p BenchmarkParams) SameIdentity(o BenchmarkParams) bool {
	return p.Benchmark == o.Benchmark &&
		p.Mode == o.Mode &&
		p.Params.Equal(o.Params)
}

// GroupThreads returns the number of threads in one group instance: the sum
// of the per-method ratios, or 1 for single-method benchmarks.
func (p BenchmarkParams) GroupThreads() int {
	if len(p.ThreadGroups) == 0 {
		return 1
	}

	total := 0
	for _, n := range p.ThreadGroups {
		total += n
	}

	return total
}

// ThreadsFor returns the thread count used during a phase.
func (p BenchmarkParams) ThreadsFor(warmup bool) int {
	if warmup && p.WarmupThreads > 0 {
		return p.WarmupThreads
	}

	return p.Threads
}

// ThreadLabel renders the thread layout for display, e.g. "4" or "2x(1+3)".
func (p BenchmarkParams) ThreadLabel() string {
	if len(p.ThreadGroups) <= 1 {
		return strconv.Itoa(p.Threads)
	}

	parts := make([]string, len(p.ThreadGroups))
	for i, n := range p.ThreadGroups {
		parts[i] = strconv.Itoa(n)
	}

	return fmt.Sprintf("%dx(%s)", p.Threads/p.GroupThreads(), strings.Join(parts, "+"))
}

// Validate checks the resolved values for consistency.
func (p BenchmarkParams) Validate() error {
	if p.Benchmark == "" {
		return fmt.Errorf("benchmark name is empty")
	}
	if p.Mode < Throughput || p.Mode > SingleShotTime {
		return fmt.Errorf("%s: invalid mode %d", p.Benchmark, int(p.Mode))
	}
	if p.Threads <= 0 {
		return fmt.Errorf("%s: thread count must be positive, got %d", p.Benchmark, p.Threads)
	}
	if p.Measurement.Count <= 0 {
		return fmt.Errorf("%s: measurement iterations must be positive, got %d",
			p.Benchmark, p.Measurement.Count)
	}
	if p.Warmup.Count < 0 {
		return fmt.Errorf("%s: warmup iterations must not be negative", p.Benchmark)
	}
	if p.Forks < 0 || p.WarmupForks < 0 {
		return fmt.Errorf("%s: fork counts must not be negative", p.Benchmark)
	}
	if p.OpsPerInvocation <= 0 {
		return fmt.Errorf("%s: operations per invocation must be positive", p.Benchmark)
	}
	if p.Mode.Timed() && p.Measurement.Time <= 0 {
		return fmt.Errorf("%s: measurement time must be positive in %s mode",
			p.Benchmark, p.Mode)
	}
	for _, n := range p.ThreadGroups {
		if n <= 0 {
			return fmt.Errorf("%s: thread group ratios must be positive, got %v",
				p.Benchmark, p.ThreadGroups)
		}
	}

	return nil
}
