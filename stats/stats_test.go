package stats

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBasics(t *testing.T) {
	l := NewList(10, 20, 30, 40, 50)

	assert.Equal(t, int64(5), l.N())
	assert.InDelta(t, 150, l.Sum(), 1e-9)
	assert.InDelta(t, 30, l.Mean(), 1e-9)
	assert.InDelta(t, 10, l.Min(), 1e-9)
	assert.InDelta(t, 50, l.Max(), 1e-9)
	assert.InDelta(t, 250, l.Variance(), 1e-9)
	assert.InDelta(t, math.Sqrt(250), l.StandardDeviation(), 1e-9)
}

func TestPercentileBoundaries(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{1, 2, 3, 17, 1000} {
		values := make([]float64, n)
		for i := range values {
			values[i] = r.NormFloat64()*100 + 1000
		}
		l := NewList(values...)

		assert.Equal(t, l.Min(), l.Percentile(0), "n=%d", n)
		assert.Equal(t, l.Max(), l.Percentile(100), "n=%d", n)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1)
	}
	l := NewList(values...)

	assert.InDelta(t, 50.5, l.Percentile(50), 1e-9)
	assert.InDelta(t, 90.1, l.Percentile(90), 1e-9)
	assert.InDelta(t, 99.01, l.Percentile(99), 1e-9)
}

func TestPercentileEmpty(t *testing.T) {
	assert.True(t, math.IsNaN(NewList().Percentile(50)))
}

func TestInsufficientDataFallback(t *testing.T) {
	for _, values := range [][]float64{nil, {1}, {1, 2}} {
		l := NewList(values...)

		assert.True(t, math.IsNaN(l.MeanErrorAt(0.999)), "n=%d", len(values))
		ci := l.ConfidenceIntervalAt(0.999)
		assert.False(t, ci.Valid(), "n=%d", len(values))
		assert.True(t, math.IsNaN(ci.Width()))

		_, err := BootstrapPercentile(l, 50, 0.99, 100)
		assert.ErrorIs(t, err, ErrInsufficientData)
	}
}

func TestConfidenceInterval(t *testing.T) {
	l := NewList(9, 10, 11, 10, 10, 9, 11)

	ci := l.ConfidenceIntervalAt(0.95)
	require.True(t, ci.Valid())
	assert.True(t, ci.Contains(l.Mean()))
	assert.InDelta(t, l.Mean(), (ci.Lower+ci.Upper)/2, 1e-9)

	// t(0.975, 6) = 2.4469
	want := 2.4469 * l.StandardDeviation() / math.Sqrt(7)
	assert.InDelta(t, want, l.MeanErrorAt(0.95), 1e-3)

	wider := l.ConfidenceIntervalAt(0.999)
	assert.Greater(t, wider.Width(), ci.Width())
}

func TestWeightedMeanIsTotalOverTotal(t *testing.T) {
	// Two threads: 100ns over 10 ops and 900ns over 30 ops.
	w := NewWeighted()
	w.AddValue(100.0/10, 10)
	w.AddValue(900.0/30, 30)

	assert.InDelta(t, 1000.0/40, w.Mean(), 1e-9)
	assert.Equal(t, int64(2), w.N())
	assert.InDelta(t, 40, w.TotalWeight(), 1e-9)
	assert.InDelta(t, 1000, w.Sum(), 1e-9)
}

func TestWeightedEqualWeightsMatchesList(t *testing.T) {
	values := []float64{3, 5, 7, 11, 13}
	w := NewWeighted()
	for _, v := range values {
		w.AddValue(v, 1)
	}
	l := NewList(values...)

	assert.InDelta(t, l.Mean(), w.Mean(), 1e-9)
	assert.InDelta(t, l.Variance(), w.Variance(), 1e-9)
	assert.InDelta(t, l.Min(), w.Min(), 1e-9)
	assert.InDelta(t, l.Max(), w.Max(), 1e-9)
	assert.Equal(t, l.Min(), w.Percentile(0))
	assert.Equal(t, l.Max(), w.Percentile(100))
}

func TestWeightedIgnoresNonPositiveWeight(t *testing.T) {
	w := NewWeighted()
	w.AddValue(5, 0)
	w.AddValue(5, -1)

	assert.Equal(t, int64(0), w.N())
	assert.True(t, math.IsNaN(w.Mean()))
}

func TestOnlineMatchesList(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	o := NewOnline()
	l := NewList()
	for i := 0; i < 500; i++ {
		v := r.ExpFloat64() * 10
		o.Add(v)
		l.Add(v)
	}

	assert.Equal(t, l.N(), o.N())
	assert.InDelta(t, l.Mean(), o.Mean(), 1e-9)
	assert.InDelta(t, l.Variance(), o.Variance(), 1e-6)
	assert.InDelta(t, l.Sum(), o.Sum(), 1e-6)
	assert.Equal(t, l.Min(), o.Min())
	assert.Equal(t, l.Max(), o.Max())
	assert.True(t, math.IsNaN(o.Percentile(50)))
	assert.InDelta(t, l.MeanErrorAt(0.99), o.MeanErrorAt(0.99), 1e-6)
}

func TestListMergeByConcatenation(t *testing.T) {
	a := NewList(1, 2, 3)
	b := NewList(10, 20, 30, 40, 50)

	joined := NewList()
	joined.AddAll(a)
	joined.AddAll(b)

	require.Equal(t, int64(8), joined.N())
	wantMean := (a.Mean()*3 + b.Mean()*5) / 8
	assert.InDelta(t, wantMean, joined.Mean(), 1e-9)
	assert.Equal(t, 1.0, joined.Percentile(0))
	assert.Equal(t, 50.0, joined.Percentile(100))
}

func TestBootstrapPercentileCoversEstimate(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	l := NewList()
	for i := 0; i < 5000; i++ {
		l.Add(r.ExpFloat64() * 100)
	}

	for _, p := range []float64{0, 50, 90, 99, 100} {
		ci, err := BootstrapPercentile(l, p, 0.99, 500)
		require.NoError(t, err)
		require.True(t, ci.Valid(), "p=%v", p)
		assert.LessOrEqual(t, ci.Lower, ci.Upper, "p=%v", p)

		est := l.Percentile(p)
		assert.GreaterOrEqual(t, est, ci.Lower-1e-9, "p=%v", p)
		assert.LessOrEqual(t, est, ci.Upper+1e-9, "p=%v", p)
	}

	// Tail percentiles are less certain than the median.
	mid, err := BootstrapPercentile(l, 50, 0.99, 500)
	require.NoError(t, err)
	tail, err := BootstrapPercentile(l, 99, 0.99, 500)
	require.NoError(t, err)
	assert.Greater(t, tail.Width(), mid.Width())
}

func TestBootstrapDeterministic(t *testing.T) {
	l := NewList(5, 1, 4, 2, 3, 9, 8, 7, 6)

	a, err := BootstrapPercentile(l, 90, 0.95, 200)
	require.NoError(t, err)
	b, err := BootstrapPercentile(l, 90, 0.95, 200)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestOutliers(t *testing.T) {
	l := NewList(10, 11, 10, 12, 11, 10, 11, 10, 12, 500)

	o := Outliers(l)
	assert.Equal(t, 1, o.Mild+o.Extreme)

	assert.Equal(t, OutlierSummary{}, Outliers(NewList(1, 2)))
}

func TestBootstrapPercentilesMatchesSingle(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	l := NewList()
	for i := 0; i < 300; i++ {
		l.Add(r.NormFloat64()*5 + 50)
	}

	ps := []float64{99, 0, 50}
	cis, err := BootstrapPercentiles(l, ps, 0.95, 300)
	require.NoError(t, err)
	require.Len(t, cis, 3)

	for i, p := range ps {
		single, err := BootstrapPercentile(l, p, 0.95, 300)
		require.NoError(t, err)
		assert.Equal(t, single, cis[i], "p=%v", p)
	}
}
