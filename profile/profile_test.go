package profile

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/options"
	"github.com/weiihann/hotloop/results"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParseInit(t *testing.T) {
	o, err := ParseInit("x", "top=5; verbose ;delay=250", "top", "verbose", "delay")
	require.NoError(t, err)

	top, err := o.Int("top", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, top)

	v, err := o.Bool("verbose", false)
	require.NoError(t, err)
	assert.True(t, v)

	d, err := o.Duration("delay", 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	assert.Equal(t, "fallback", o.String("missing", "fallback"))
	assert.False(t, o.Has("missing"))
}

func TestParseInitErrors(t *testing.T) {
	tests := []struct {
		name string
		init string
		want string
	}{
		{name: "unknown key", init: "bogus=1", want: `option "bogus" is not recognised`},
		{name: "repeated key", init: "top=1;top=2", want: "is given more than once"},
		{name: "empty key", init: "=3", want: "malformed option"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInit("x", tt.init, "top")
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	o, err := ParseInit("x", "top=zero", "top")
	require.NoError(t, err)
	_, err = o.Int("top", 1)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestExclusiveOptions(t *testing.T) {
	o, err := ParseInit("perfstat", "events=cycles;template=cache", "events", "template")
	require.NoError(t, err)

	err = o.Exclusive("events", "template")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "options events and template are mutually exclusive")

	o, err = ParseInit("perfstat", "events=cycles", "events", "template")
	require.NoError(t, err)
	assert.NoError(t, o.Exclusive("events", "template"))
}

func TestInstantiateDuplicate(t *testing.T) {
	_, err := Instantiate([]options.ProfilerConfig{{Name: "gc"}, {Name: "gc"}}, discard)
	require.ErrorIs(t, err, ErrDuplicateProfiler)
	assert.Contains(t, err.Error(), "Cannot instantiate the same profiler more than once")

	// An alias names the same implementation.
	_, err = Instantiate([]options.ProfilerConfig{{Name: "gc"}, {Name: "alloc", Init: "churn"}}, discard)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "gc", dup.Name)
}

func TestInstantiateUnknown(t *testing.T) {
	_, err := Instantiate([]options.ProfilerConfig{{Name: "gc"}, {Name: "nope"}}, discard)
	assert.ErrorIs(t, err, ErrUnknownProfiler)
}

func TestInstantiateSortsFamilies(t *testing.T) {
	set, err := Instantiate([]options.ProfilerConfig{{Name: "cpu", Init: "top=3"}, {Name: "gc"}}, discard)
	require.NoError(t, err)
	require.Len(t, set.Internal, 2)
	assert.Equal(t, "cpu", set.Internal[0].Name())
	assert.Equal(t, "gc", set.Internal[1].Name())
	assert.Empty(t, set.External)
	assert.False(t, set.Empty())
}

func TestListHasEveryProfilerOnce(t *testing.T) {
	var names []string
	for _, d := range List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"cpu", "gc", "perfstat", "rusage"}, names)
}

type recorder struct {
	name string
	log  *[]string
	err  error
}

func (r *recorder) Name() string        { return r.name }
func (r *recorder) Description() string { return r.name }

func (r *recorder) BeforeIteration(infra.BenchmarkParams, infra.IterationParams) error {
	*r.log = append(*r.log, "start "+r.name)

	return nil
}

func (r *recorder) AfterIteration(
	infra.BenchmarkParams,
	infra.IterationParams,
	results.IterationMeta,
) ([]results.Result, error) {
	*r.log = append(*r.log, "stop "+r.name)
	if r.err != nil {
		return nil, r.err
	}

	return []results.Result{results.NewScalar(results.Secondary, r.name, 1, "#", results.Sum)}, nil
}

func TestSetOrdering(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	set := &Set{Internal: []Internal{
		&recorder{name: "a", log: &log},
		&recorder{name: "b", log: &log, err: boom},
		&recorder{name: "c", log: &log},
	}}

	require.NoError(t, set.BeforeIteration(infra.BenchmarkParams{}, infra.IterationParams{}))
	rs, err := set.AfterIteration(infra.BenchmarkParams{}, infra.IterationParams{}, results.IterationMeta{})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "profiler b")
	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}, log)
	require.Len(t, rs, 2)
	assert.Equal(t, "c", rs[0].Label)
	assert.Equal(t, "a", rs[1].Label)
}

func TestNilSet(t *testing.T) {
	var set *Set
	assert.True(t, set.Empty())
	assert.NoError(t, set.BeforeIteration(infra.BenchmarkParams{}, infra.IterationParams{}))
	assert.Nil(t, set.Prefix(infra.BenchmarkParams{}))
}

var sink [][]byte

func TestGCProfilerNormalisesAllocations(t *testing.T) {
	p, err := newGC("", discard)
	require.NoError(t, err)
	gc := p.(*gcProfiler)

	const ops = 1000
	require.NoError(t, gc.BeforeIteration(infra.BenchmarkParams{}, infra.IterationParams{}))
	for range ops {
		sink = append(sink, make([]byte, 1024))
	}
	rs, err := gc.AfterIteration(infra.BenchmarkParams{}, infra.IterationParams{}, results.IterationMeta{AllOps: ops})
	require.NoError(t, err)
	sink = nil

	byLabel := make(map[string]results.Result)
	for _, r := range rs {
		byLabel[r.Label] = r
	}
	require.Contains(t, byLabel, "gc.alloc.rate.norm")
	norm := byLabel["gc.alloc.rate.norm"]
	assert.Equal(t, "B/op", norm.Unit)
	assert.GreaterOrEqual(t, norm.Score(), 1024.0)
	assert.Equal(t, results.Sum, byLabel["gc.count"].Policy)
}

func TestGCProfilerRejectsUnknownOption(t *testing.T) {
	_, err := newGC("heap=1", discard)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestCPUProfiler(t *testing.T) {
	p, err := newCPU("top=2", discard)
	require.NoError(t, err)
	cpu := p.(*cpuProfiler)

	require.NoError(t, cpu.BeforeIteration(infra.BenchmarkParams{}, infra.IterationParams{}))
	deadline := time.Now().Add(100 * time.Millisecond)
	x := 0
	for time.Now().Before(deadline) {
		x++
	}
	rs, err := cpu.AfterIteration(infra.BenchmarkParams{Benchmark: "spin"}, infra.IterationParams{}, results.IterationMeta{})
	require.NoError(t, err)
	require.Len(t, rs, 2)

	assert.Equal(t, results.KindText, rs[0].Kind)
	assert.Equal(t, "cpu.top", rs[0].Label)
	assert.Equal(t, "cpu.samples", rs[1].Label)
	assert.Positive(t, x)
}

func TestParsePerfStat(t *testing.T) {
	out := `# started on Mon Jan  1 00:00:00 2024

1500.25,msec,task-clock,1500250000,100.00,0.998,CPUs utilized
4000000,,cycles,1500000000,100.00,,
8000000,,instructions,1500000000,100.00,2.00,insn per cycle
<not counted>,,LLC-load-misses,0,0.00,,
`
	counters, err := parsePerfStat(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, counters, 3)
	assert.Equal(t, perfCounter{event: "task-clock", value: 1500.25, unit: "msec"}, counters[0])
	assert.Equal(t, "cycles", counters[1].event)

	rs := perfResults(counters, 1000)
	byLabel := make(map[string]results.Result)
	for _, r := range rs {
		byLabel[r.Label] = r
	}
	assert.InDelta(t, 4000.0, byLabel["perfstat.cycles.norm"].Score(), 1e-9)
	assert.Equal(t, "#/op", byLabel["perfstat.cycles.norm"].Unit)
	assert.Equal(t, results.Sum, byLabel["perfstat.cycles"].Policy)
	assert.InDelta(t, 2.0, byLabel["perfstat.ipc"].Score(), 1e-9)
}

func TestPerfStatConflictingOptions(t *testing.T) {
	_, err := newPerfStat("events=cycles;template=cache", discard)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "mutually exclusive")

	_, err = newPerfStat("template=nope", discard)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
