// Package stats computes descriptive and inferential statistics over raw
// measurement samples.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInsufficientData is returned when a statistic needs more samples than
// are available. Confidence intervals need at least three.
var ErrInsufficientData = errors.New("insufficient data")

// MinSamplesForError is the smallest sample count for which a mean error or
// confidence interval is reported.
const MinSamplesForError = 3

// Statistics is the read side shared by every sample container.
type Statistics interface {
	N() int64
	Sum() float64
	Min() float64
	Max() float64
	Mean() float64
	Variance() float64
	StandardDeviation() float64

	// Percentile returns the p-th percentile, 0 <= p <= 100. Containers
	// that do not retain samples return NaN.
	Percentile(p float64) float64

	// MeanErrorAt returns the half-width of the confidence interval of the
	// mean at the given confidence level, or NaN for N < 3.
	MeanErrorAt(confidence float64) float64

	// ConfidenceIntervalAt returns the interval around the mean. The
	// interval is invalid for N < 3.
	ConfidenceIntervalAt(confidence float64) Interval
}

// Interval is a closed confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Invalid is the placeholder interval reported when the data cannot support
// an interval estimate.
func Invalid() Interval {
	return Interval{Lower: math.NaN(), Upper: math.NaN()}
}

// Valid reports whether both bounds are finite numbers.
func (i Interval) Valid() bool {
	return !math.IsNaN(i.Lower) && !math.IsNaN(i.Upper) &&
		!math.IsInf(i.Lower, 0) && !math.IsInf(i.Upper, 0)
}

// Contains reports whether v lies within the interval.
func (i Interval) Contains(v float64) bool {
	return i.Valid() && v >= i.Lower && v <= i.Upper
}

// Width returns Upper-Lower, NaN for an invalid interval.
func (i Interval) Width() float64 {
	if !i.Valid() {
		return math.NaN()
	}

	return i.Upper - i.Lower
}

// tQuantile returns the two-sided Student t critical value for the given
// confidence and n samples.
func tQuantile(confidence float64, n int64) float64 {
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}

	return dist.Quantile(1 - (1-confidence)/2)
}

func meanErrorAt(s Statistics, confidence float64) float64 {
	n := s.N()
	if n < MinSamplesForError {
		return math.NaN()
	}

	return tQuantile(confidence, n) * s.StandardDeviation() / math.Sqrt(float64(n))
}

func confidenceIntervalAt(s Statistics, confidence float64) Interval {
	e := meanErrorAt(s, confidence)
	if math.IsNaN(e) {
		return Invalid()
	}

	m := s.Mean()

	return Interval{Lower: m - e, Upper: m + e}
}

// percentileSorted interpolates linearly between the closest ranks.
// p=0 and p=100 are exactly the first and last elements.
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	weight := rank - float64(lower)

	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
