package results

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/stats"
)

func throughputs(label string, ops ...int64) []Result {
	out := make([]Result, len(ops))
	for i, n := range ops {
		out[i] = NewThroughput(Primary, label, n, time.Second, infra.Seconds)
	}

	return out
}

func TestThroughputScore(t *testing.T) {
	r := NewThroughput(Primary, "noop", 500, 250*time.Millisecond, infra.Seconds)

	assert.InDelta(t, 2000, r.Score(), 1e-9)
	assert.Equal(t, "ops/s", r.Unit)
	assert.Equal(t, int64(1), r.SampleCount())
}

func TestThroughputThreadAssociativity(t *testing.T) {
	a := throughputs("x", 100, 250, 75)
	b := throughputs("x", 40, 600)

	joined, err := ThreadAggregate(append(append([]Result{}, a...), b...))
	require.NoError(t, err)
	left, err := ThreadAggregate(a)
	require.NoError(t, err)
	right, err := ThreadAggregate(b)
	require.NoError(t, err)

	assert.InDelta(t, left.Score()+right.Score(), joined.Score(), 1e-9)
	assert.Equal(t, Sum, joined.Policy)
}

func TestThroughputIterationAverages(t *testing.T) {
	iters := throughputs("x", 100, 200, 300)
	for i := range iters {
		agg, err := ThreadAggregate(iters[i : i+1])
		require.NoError(t, err)
		iters[i] = agg
	}

	run, err := IterationAggregate(iters)
	require.NoError(t, err)
	assert.InDelta(t, 200, run.Score(), 1e-9)
	assert.Equal(t, Avg, run.Policy)
	assert.True(t, run.ScoreInterval().Valid())
}

func TestAverageTimeIsTotalOverTotal(t *testing.T) {
	// 1s over 10 ops and 3s over 1000 ops: 4s/1010 ops, not the mean of
	// 100ms and 3ms.
	a := NewAverageTime(Primary, "x", 10, time.Second, infra.Milliseconds)
	b := NewAverageTime(Primary, "x", 1000, 3*time.Second, infra.Milliseconds)

	agg, err := ThreadAggregate([]Result{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 4000.0/1010, agg.Score(), 1e-9)
	assert.Equal(t, "ms/op", agg.Unit)

	again, err := IterationAggregate([]Result{agg, NewAverageTime(Primary, "x", 990, time.Second, infra.Milliseconds)})
	require.NoError(t, err)
	assert.InDelta(t, 5000.0/2000, again.Score(), 1e-9)
}

func TestSamplePooling(t *testing.T) {
	bufA := NewSampleBuffer(4)
	for _, v := range []int64{100, 200, 300} {
		bufA.Add(v)
	}
	bufB := NewSampleBuffer(4)
	for _, v := range []int64{1000, 2000} {
		bufB.Add(v)
	}

	a := NewSampleTime(Primary, "x", bufA, infra.Nanoseconds)
	b := NewSampleTime(Primary, "x", bufB, infra.Nanoseconds)

	joined, err := IterationAggregate([]Result{a, b})
	require.NoError(t, err)
	require.Equal(t, int64(5), joined.SampleCount())

	want := (a.Score()*3 + b.Score()*2) / 5
	assert.InDelta(t, want, joined.Score(), 1e-9)
	assert.InDelta(t, 100, joined.Stats.Percentile(0), 0)
	assert.InDelta(t, 2000, joined.Stats.Percentile(100), 0)
}

func TestSampleBufferHalfDecimate(t *testing.T) {
	buf := NewSampleBuffer(8)
	for i := int64(0); i < 7; i++ {
		buf.Add(i)
	}
	buf.HalfDecimate()

	assert.Equal(t, []int64{0, 2, 4, 6}, buf.Samples())
}

func TestSingleShot(t *testing.T) {
	r := NewSingleShot(Primary, "x", 10*time.Microsecond, 10, infra.Microseconds)
	assert.InDelta(t, 1, r.Score(), 1e-9)
	assert.Equal(t, "us/op", r.Unit)
}

func TestScalarPolicies(t *testing.T) {
	rs := []Result{
		NewScalar(Secondary, "m", 1, "B/op", Max),
		NewScalar(Secondary, "m", 5, "B/op", Max),
		NewScalar(Secondary, "m", 3, "B/op", Max),
	}
	agg, err := ThreadAggregate(rs)
	require.NoError(t, err)
	assert.InDelta(t, 5, agg.Score(), 0)
	assert.True(t, math.IsNaN(agg.ScoreError()))

	sum := []Result{
		NewScalar(Secondary, "n", 1, "#", Sum),
		NewScalar(Secondary, "n", 2, "#", Sum),
	}
	agg, err = IterationAggregate(sum)
	require.NoError(t, err)
	assert.InDelta(t, 3, agg.Score(), 0)
}

func TestTextJoins(t *testing.T) {
	agg, err := ThreadAggregate([]Result{NewText("cpu", "a"), NewText("cpu", "b")})
	require.NoError(t, err)
	assert.Equal(t, "a\nb", agg.Text)
	assert.True(t, math.IsNaN(agg.Score()))
}

func TestIdentityGuard(t *testing.T) {
	base := NewThroughput(Primary, "x", 1, time.Second, infra.Seconds)

	tests := []struct {
		name  string
		other Result
		field string
	}{
		{"label", NewThroughput(Primary, "y", 1, time.Second, infra.Seconds), "label"},
		{"unit", NewThroughput(Primary, "x", 1, time.Second, infra.Milliseconds), "unit"},
		{"role", NewThroughput(Secondary, "x", 1, time.Second, infra.Seconds), "role"},
		{"kind", NewAverageTime(Primary, "x", 1, time.Second, infra.Seconds), "kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ThreadAggregate([]Result{base, tt.other})
			require.ErrorIs(t, err, ErrMismatch)

			var me *MismatchError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.field, me.Field)
		})
	}

	_, err := ThreadAggregate(nil)
	assert.ErrorIs(t, err, ErrNoResults)
}

func testParams(name string, mode infra.Mode) infra.BenchmarkParams {
	return infra.BenchmarkParams{
		Benchmark:        name,
		Mode:             mode,
		Threads:          1,
		Measurement:      infra.IterationParams{Count: 2, Time: time.Second},
		TimeUnit:         infra.Seconds,
		OpsPerInvocation: 1,
	}
}

func TestIterationResultFreezes(t *testing.T) {
	bp := testParams("x", infra.Throughput)
	ir := NewIterationResult(bp, bp.Measurement, 1, IterationMeta{AllOps: 30, MeasuredOps: 20})

	require.NoError(t, ir.AddResults(throughputs("x", 10, 10)...))
	require.NoError(t, ir.AddResult(NewScalar(Secondary, "gc", 4, "B/op", Avg)))
	require.NoError(t, ir.AddResult(NewScalar(Secondary, "gc", 6, "B/op", Avg)))

	p, err := ir.Primary()
	require.NoError(t, err)
	assert.InDelta(t, 20, p.Score(), 1e-9)
	assert.True(t, ir.Frozen())

	err = ir.AddResult(NewScalar(Secondary, "late", 1, "#", Avg))
	assert.ErrorIs(t, err, ErrFrozen)

	secs, err := ir.Secondaries()
	require.NoError(t, err)
	require.Len(t, secs, 1)
	assert.Equal(t, "gc", secs[0].Label)
	assert.InDelta(t, 5, secs[0].Score(), 1e-9)
}

func iteration(t *testing.T, bp infra.BenchmarkParams, index int, rs ...Result) *IterationResult {
	t.Helper()
	ir := NewIterationResult(bp, bp.Measurement, index, IterationMeta{})
	require.NoError(t, ir.AddResults(rs...))

	return ir
}

func TestRunResultAggregatesAllIterations(t *testing.T) {
	bp := testParams("x", infra.Throughput)

	fork1, err := NewBenchmarkResult(bp, []*IterationResult{
		iteration(t, bp, 1, throughputs("x", 100)...),
		iteration(t, bp, 2, throughputs("x", 200)...),
	})
	require.NoError(t, err)
	fork2, err := NewBenchmarkResult(bp, []*IterationResult{
		iteration(t, bp, 1, throughputs("x", 600)...),
	})
	require.NoError(t, err)

	p1, err := fork1.Primary()
	require.NoError(t, err)
	assert.InDelta(t, 150, p1.Score(), 1e-9)

	run, err := NewRunResult([]*BenchmarkResult{fork1, fork2})
	require.NoError(t, err)
	p, err := run.Primary()
	require.NoError(t, err)
	assert.InDelta(t, 300, p.Score(), 1e-9)
	assert.Equal(t, int64(3), p.SampleCount())
	assert.Len(t, run.Iterations(), 3)
}

func TestRunResultIdentityGuard(t *testing.T) {
	a := testParams("x", infra.Throughput)
	b := testParams("x", infra.AverageTime)

	_, err := NewBenchmarkResult(a, []*IterationResult{
		iteration(t, b, 1, NewAverageTime(Primary, "x", 1, time.Second, infra.Seconds)),
	})
	require.ErrorIs(t, err, ErrMismatch)

	fa, err := NewBenchmarkResult(a, nil)
	require.NoError(t, err)
	fb, err := NewBenchmarkResult(b, nil)
	require.NoError(t, err)

	_, err = NewRunResult([]*BenchmarkResult{fa, fb})
	assert.ErrorIs(t, err, ErrMismatch)

	_, err = NewRunResult(nil)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestDerivatives(t *testing.T) {
	bp := testParams("lat", infra.SampleTime)
	buf := NewSampleBuffer(1000)
	for i := int64(1); i <= 1000; i++ {
		buf.Add(i)
	}

	br, err := NewBenchmarkResult(bp, []*IterationResult{
		iteration(t, bp, 1, NewSampleTime(Primary, "lat", buf, infra.Nanoseconds)),
	})
	require.NoError(t, err)

	secs, err := br.Secondaries()
	require.NoError(t, err)
	require.Len(t, secs, len(DerivativePercentiles))

	assert.Equal(t, "lat:p0.00", secs[0].Label)
	assert.Equal(t, "lat:p0.50", secs[1].Label)
	assert.Equal(t, "lat:p0.999", secs[5].Label)
	assert.Equal(t, "lat:p0.9999", secs[6].Label)
	assert.Equal(t, "lat:p1.00", secs[7].Label)

	assert.InDelta(t, 1, secs[0].Score(), 0)
	assert.InDelta(t, 1000, secs[7].Score(), 0)
	for _, s := range secs {
		assert.Equal(t, SecondaryDerivative, s.Role)
		assert.Equal(t, "ns/op", s.Unit)
		assert.True(t, s.HasInterval())
	}
	assert.True(t, secs[1].ScoreInterval().Contains(secs[1].Score()))
}

func TestDerivativesInsufficientData(t *testing.T) {
	buf := NewSampleBuffer(2)
	buf.Add(5)
	buf.Add(7)
	ds := Derivatives(NewSampleTime(Primary, "x", buf, infra.Nanoseconds))

	require.Len(t, ds, len(DerivativePercentiles))
	assert.False(t, ds[0].ScoreInterval().Valid())
	assert.InDelta(t, 5, ds[0].Score(), 0)
}

func TestNoDerivativesForThroughput(t *testing.T) {
	assert.Nil(t, Derivatives(NewThroughput(Primary, "x", 1, time.Second, infra.Seconds)))
}

func TestAverageTimeStatsType(t *testing.T) {
	r := NewAverageTime(Primary, "x", 4, time.Second, infra.Seconds)
	_, ok := r.Stats.(*stats.Weighted)
	assert.True(t, ok)
}
