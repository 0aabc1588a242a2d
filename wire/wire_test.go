package wire

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/stats"
)

func benchParams(t *testing.T) infra.BenchmarkParams {
	t.Helper()

	size, err := infra.ParseValue(infra.KindInt, "0x10")
	require.NoError(t, err)
	pause, err := infra.ParseValue(infra.KindDuration, "5ms")
	require.NoError(t, err)

	return infra.BenchmarkParams{
		Benchmark:        "sort",
		Mode:             infra.SampleTime,
		Threads:          2,
		SyncIterations:   true,
		Forks:            3,
		Warmup:           infra.IterationParams{Count: 2, Time: time.Second, BatchSize: 1},
		Measurement:      infra.IterationParams{Count: 5, Time: 2 * time.Second, BatchSize: 4},
		TimeUnit:         infra.Microseconds,
		OpsPerInvocation: 1,
		Params: infra.Params{
			{Name: "size", Value: size},
			{Name: "pause", Value: pause},
		},
		Timeout: 10 * time.Minute,
	}
}

func TestParamsThroughJSON(t *testing.T) {
	bp := benchParams(t)

	raw, err := json.Marshal(Plan{Version: Version, RunID: "r", Fork: 1, Benchmark: FromParams(bp)})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"mode":"sample"`)
	assert.Contains(t, string(raw), `"value":"0x10"`)

	var plan Plan
	require.NoError(t, json.Unmarshal(raw, &plan))
	got, err := ToParams(plan.Benchmark)
	require.NoError(t, err)

	assert.True(t, got.SameIdentity(bp))
	assert.Equal(t, bp.Identity(), got.Identity())
	assert.Equal(t, int64(16), got.Params[0].Value.Int)
	assert.Equal(t, int64(5*time.Millisecond), got.Params[1].Value.Int)
	assert.Equal(t, bp.Measurement, got.Measurement)
	assert.Equal(t, bp.Timeout, got.Timeout)
}

func TestUnknownEnumsRejected(t *testing.T) {
	p := FromParams(benchParams(t))
	p.Mode = "fastest"
	_, err := ToParams(p)
	assert.Error(t, err)

	_, err = ToResult(Result{Kind: "throughput", Role: "tertiary", Policy: "avg"})
	assert.Error(t, err)
}

func TestAverageTimeKeepsWeights(t *testing.T) {
	a := results.NewAverageTime(results.Primary, "x", 100, time.Millisecond, infra.Microseconds)
	b := results.NewAverageTime(results.Primary, "x", 300, time.Millisecond, infra.Microseconds)
	joined, err := results.ThreadAggregate([]results.Result{a, b})
	require.NoError(t, err)

	w, err := FromResult(joined)
	require.NoError(t, err)
	require.Len(t, w.Weights, 2)

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))

	got, err := ToResult(back)
	require.NoError(t, err)
	assert.InDelta(t, joined.Score(), got.Score(), 1e-12)
	assert.InDelta(t, 5.0, got.Score(), 1e-12)
}

func TestInvalidIntervalEncodesAsNull(t *testing.T) {
	r := results.NewScalar(results.SecondaryDerivative, "lat:p0.50", 3, "us/op", results.Avg).
		WithInterval(stats.Invalid())

	w, err := FromResult(r)
	require.NoError(t, err)

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"interval":{"lower":null,"upper":null}`)

	var back Result
	require.NoError(t, json.Unmarshal(raw, &back))
	got, err := ToResult(back)
	require.NoError(t, err)
	assert.True(t, got.HasInterval())
	assert.False(t, got.ScoreInterval().Valid())
	assert.True(t, math.IsNaN(got.ScoreInterval().Lower))
}

func TestIterationResultTransfer(t *testing.T) {
	bp := benchParams(t)

	buf := results.NewSampleBuffer(8)
	for _, ns := range []int64{1000, 2000, 3000} {
		buf.Add(ns)
	}
	ir := results.NewIterationResult(bp, bp.Measurement, 2, results.IterationMeta{AllOps: 40, MeasuredOps: 30})
	require.NoError(t, ir.AddResults(
		results.NewSampleTime(results.Primary, "sort", buf, bp.TimeUnit),
		results.NewSampleTime(results.Primary, "sort", buf, bp.TimeUnit),
		results.NewScalar(results.Secondary, "gc.alloc.rate.norm", 64, "B/op", results.Avg),
		results.NewText("cpu.top", "main.sort 100%"),
	))

	w, err := FromIterationResult(1, ir)
	require.NoError(t, err)
	require.Len(t, w.Results, 4)

	raw, err := json.Marshal(w)
	require.NoError(t, err)
	var back IterationResult
	require.NoError(t, json.Unmarshal(raw, &back))

	got, err := ToIterationResult(bp, back)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Index)
	assert.Equal(t, int64(40), got.Meta.AllOps)
	assert.Equal(t, []string{"gc.alloc.rate.norm", "cpu.top"}, got.SecondaryLabels())

	primary, err := got.Primary()
	require.NoError(t, err)
	assert.Equal(t, int64(6), primary.SampleCount())
	assert.InDelta(t, 2.0, primary.Score(), 1e-12)
}

func TestIterationResultGuards(t *testing.T) {
	bp := benchParams(t)
	ir := results.NewIterationResult(bp, bp.Measurement, 1, results.IterationMeta{})
	w, err := FromIterationResult(1, ir)
	require.NoError(t, err)

	other := bp
	other.Benchmark = "other"
	_, err = ToIterationResult(other, w)
	assert.ErrorContains(t, err, "reported for")

	w.Version = Version + 1
	_, err = ToIterationResult(bp, w)
	assert.ErrorContains(t, err, "schema version")
}
