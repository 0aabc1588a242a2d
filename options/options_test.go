package options

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/hotloop/infra"
)

func TestOptionalLayering(t *testing.T) {
	assert.Equal(t, 3, None[int]().OrElse(3))
	assert.Equal(t, 1, Some(1).OrElse(3))
	assert.Equal(t, Some(1), Some(1).Or(Some(2)))
	assert.Equal(t, Some(2), None[int]().Or(Some(2)))

	v, ok := None[string]().Get()
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestPrecedence(t *testing.T) {
	system := Options{}
	declared := NewBuilder().
		MeasurementIterations(3).
		WarmupIterations(2).
		Forks(2).
		Build()
	parent := NewBuilder().
		MeasurementIterations(7).
		TimeUnit(infra.Milliseconds).
		Build()
	cli := NewBuilder().
		MeasurementIterations(9).
		Build()

	eff := cli.WithParent(parent).WithParent(declared).WithParent(system)

	assert.Equal(t, Some(9), eff.Iterations)
	assert.Equal(t, Some(infra.Milliseconds), eff.TimeUnit)
	assert.Equal(t, Some(2), eff.WarmupIterations)
	assert.Equal(t, Some(2), eff.Forks)
	assert.False(t, eff.Threads.IsSet())
}

func TestBuilderParent(t *testing.T) {
	parent := NewBuilder().Forks(3).AddProfiler("gc", "").Param("n", "1", "2").Build()
	o := NewBuilder().Parent(parent).AddProfiler("cpu", "rate=100").Param("m", "x").Build()

	assert.Equal(t, Some(3), o.Forks)
	assert.Equal(t, []ProfilerConfig{{Name: "gc"}, {Name: "cpu", Init: "rate=100"}}, o.Profilers)
	assert.Equal(t, map[string][]string{"n": {"1", "2"}, "m": {"x"}}, o.Params)
}

func TestConverters(t *testing.T) {
	n, err := ParsePositiveInt("-i", "5")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = ParsePositiveInt("-i", "0")
	require.ErrorIs(t, err, ErrInvalidOption)
	var ce *ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "-i", ce.Option)
	assert.Contains(t, err.Error(), "must be positive")

	n, err = ParseNonNegativeInt("-wi", "0")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = ParseNonNegativeInt("-wi", "-1")
	assert.ErrorIs(t, err, ErrInvalidOption)
	_, err = ParseNonNegativeInt("-wi", "two")
	assert.ErrorIs(t, err, ErrInvalidOption)

	n, err = ParseThreads("-t", "max")
	require.NoError(t, err)
	assert.Equal(t, MaxThreads, n)
	_, err = ParseThreads("-t", "lots")
	assert.ErrorIs(t, err, ErrInvalidOption)

	b, err := ParseBool("-foe", "yes")
	require.NoError(t, err)
	assert.True(t, b)
	_, err = ParseBool("-foe", "perhaps")
	assert.ErrorIs(t, err, ErrInvalidOption)

	d, err := ParseTime("-r", "2")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
	_, err = ParsePositiveTime("-r", "0s")
	assert.ErrorIs(t, err, ErrInvalidOption)

	groups, err := ParseIntList("-tg", "1,3")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, groups)

	name, values, err := ParseParam("-p", "size=1, 10,100")
	require.NoError(t, err)
	assert.Equal(t, "size", name)
	assert.Equal(t, []string{"1", "10", "100"}, values)
	_, _, err = ParseParam("-p", "size")
	assert.ErrorIs(t, err, ErrInvalidOption)

	pc, err := ParseProfiler("-prof", "perfstat:events=cycles;delay=1")
	require.NoError(t, err)
	assert.Equal(t, ProfilerConfig{Name: "perfstat", Init: "events=cycles;delay=1"}, pc)
}

func TestResolveDefaults(t *testing.T) {
	bp, err := Options{}.Resolve(Target{Name: "noop", Mode: infra.Throughput})
	require.NoError(t, err)

	assert.Equal(t, DefaultIterations, bp.Measurement.Count)
	assert.Equal(t, DefaultTime, bp.Measurement.Time)
	assert.Equal(t, DefaultWarmupIterations, bp.Warmup.Count)
	assert.Equal(t, DefaultForks, bp.Forks)
	assert.Equal(t, 1, bp.Threads)
	assert.Equal(t, infra.Seconds, bp.TimeUnit)
	assert.True(t, bp.SyncIterations)

	ss, err := Options{}.Resolve(Target{Name: "noop", Mode: infra.SingleShotTime})
	require.NoError(t, err)
	assert.Equal(t, 1, ss.Measurement.Count)
	assert.Equal(t, 0, ss.Warmup.Count)
}

func TestResolveThreads(t *testing.T) {
	o := NewBuilder().Threads(MaxThreads).Build()
	bp, err := o.Resolve(Target{Name: "x", Mode: infra.Throughput})
	require.NoError(t, err)
	assert.Equal(t, runtime.NumCPU(), bp.Threads)

	o = NewBuilder().Threads(3).Build()
	bp, err = o.Resolve(Target{Name: "pc", Mode: infra.Throughput, Ratios: []int{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 4, bp.Threads)

	o = NewBuilder().ThreadGroups(1, 3).Build()
	bp, err = o.Resolve(Target{Name: "pc", Mode: infra.Throughput, Ratios: []int{1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, bp.ThreadGroups)
	assert.Equal(t, 4, bp.Threads)

	o = NewBuilder().ThreadGroups(1, 2, 3).Build()
	_, err = o.Resolve(Target{Name: "pc", Mode: infra.Throughput, Ratios: []int{1, 1}})
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "hotloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
iterations: 3
warmup-iterations: 0
time: 200ms
threads: max
modes: [thrpt, avgt]
time-unit: us
thread-groups: [1, 3]
profilers:
  - gc
  - "perfstat:events=cycles"
params:
  size: [1, 10]
  name: a,b
include:
  - ^sort
`), 0o600))

	t.Setenv("HOTLOOP_FORKS", "2")

	o, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Some(3), o.Iterations)
	assert.Equal(t, Some(0), o.WarmupIterations)
	assert.Equal(t, Some(200*time.Millisecond), o.Time)
	assert.Equal(t, Some(MaxThreads), o.Threads)
	assert.Equal(t, Some([]infra.Mode{infra.Throughput, infra.AverageTime}), o.Modes)
	assert.Equal(t, Some(infra.Microseconds), o.TimeUnit)
	assert.Equal(t, Some([]int{1, 3}), o.ThreadGroups)
	assert.Equal(t, Some(2), o.Forks)
	assert.Equal(t, []ProfilerConfig{{Name: "gc"}, {Name: "perfstat", Init: "events=cycles"}}, o.Profilers)
	assert.Equal(t, []string{"1", "10"}, o.Params["size"])
	assert.Equal(t, []string{"a", "b"}, o.Params["name"])
	assert.Equal(t, []string{"^sort"}, o.Includes)
	assert.False(t, o.FailOnError.IsSet())
}

func TestLoadRejectsBadValue(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("iterations: -2\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrInvalidOption)
	assert.Contains(t, err.Error(), "iterations")
}

func TestLoadEnvOnly(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOTLOOP_WARMUP_ITERATIONS", "4")
	t.Setenv("HOTLOOP_FAIL_ON_ERROR", "true")

	o, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Some(4), o.WarmupIterations)
	assert.Equal(t, Some(true), o.FailOnError)
}
