package stats

import "math"

// Online accumulates mean and variance with Welford's method and keeps no
// samples. Use it for scalar consumers that never ask for percentiles.
type Online struct {
	n    int64
	mean float64
	m2   float64
	sum  float64
	min  float64
	max  float64
}

// NewOnline returns an empty accumulator.
func NewOnline() *Online {
	return &Online{min: math.Inf(1), max: math.Inf(-1)}
}

// Add records one value.
func (o *Online) Add(v float64) {
	o.n++
	d := v - o.mean
	o.mean += d / float64(o.n)
	o.m2 += d * (v - o.mean)
	o.sum += v
	o.min = math.Min(o.min, v)
	o.max = math.Max(o.max, v)
}

func (o *Online) N() int64 { return o.n }

func (o *Online) Sum() float64 { return o.sum }

func (o *Online) Min() float64 {
	if o.n == 0 {
		return math.NaN()
	}

	return o.min
}

func (o *Online) Max() float64 {
	if o.n == 0 {
		return math.NaN()
	}

	return o.max
}

func (o *Online) Mean() float64 {
	if o.n == 0 {
		return math.NaN()
	}

	return o.mean
}

func (o *Online) Variance() float64 {
	switch o.n {
	case 0:
		return math.NaN()
	case 1:
		return 0
	}

	return o.m2 / float64(o.n-1)
}

func (o *Online) StandardDeviation() float64 { return math.Sqrt(o.Variance()) }

// Percentile is not available without retained samples.
func (o *Online) Percentile(float64) float64 { return math.NaN() }

func (o *Online) MeanErrorAt(confidence float64) float64 {
	return meanErrorAt(o, confidence)
}

func (o *Online) ConfidenceIntervalAt(confidence float64) Interval {
	return confidenceIntervalAt(o, confidence)
}
