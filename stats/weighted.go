package stats

import (
	"math"
	"sort"
)

// Weighted keeps (value, weight) observations. The mean is the weighted
// mean, so feeding it per-operation times weighted by operation counts yields
// total time over total operations without an average-of-averages bias.
//
// N is the number of observations, not the total weight: confidence
// intervals are about how many independent estimates were taken.
type Weighted struct {
	values  []float64
	weights []float64
}

// NewWeighted returns an empty Weighted container.
func NewWeighted() *Weighted {
	return &Weighted{}
}

// AddValue records one observation with weight w. Non-positive weights are
// ignored.
func (s *Weighted) AddValue(v, w float64) {
	if w <= 0 {
		return
	}
	s.values = append(s.values, v)
	s.weights = append(s.weights, w)
}

// AddAll merges every observation of other.
func (s *Weighted) AddAll(other *Weighted) {
	if other == nil {
		return
	}
	s.values = append(s.values, other.values...)
	s.weights = append(s.weights, other.weights...)
}

// Observations returns copies of the values and weights.
func (s *Weighted) Observations() (values, weights []float64) {
	values = append([]float64(nil), s.values...)
	weights = append([]float64(nil), s.weights...)

	return values, weights
}

// TotalWeight returns the sum of all weights.
func (s *Weighted) TotalWeight() float64 {
	var t float64
	for _, w := range s.weights {
		t += w
	}

	return t
}

func (s *Weighted) N() int64 { return int64(len(s.values)) }

// Sum returns the weighted sum, i.e. the sum of value*weight.
func (s *Weighted) Sum() float64 {
	var t float64
	for i, v := range s.values {
		t += v * s.weights[i]
	}

	return t
}

func (s *Weighted) Min() float64 {
	if len(s.values) == 0 {
		return math.NaN()
	}
	m := s.values[0]
	for _, v := range s.values[1:] {
		m = math.Min(m, v)
	}

	return m
}

func (s *Weighted) Max() float64 {
	if len(s.values) == 0 {
		return math.NaN()
	}
	m := s.values[0]
	for _, v := range s.values[1:] {
		m = math.Max(m, v)
	}

	return m
}

func (s *Weighted) Mean() float64 {
	tw := s.TotalWeight()
	if tw == 0 {
		return math.NaN()
	}

	return s.Sum() / tw
}

// Variance is the weighted variance with a Bessel-style n/(n-1) correction
// over the observation count.
func (s *Weighted) Variance() float64 {
	n := len(s.values)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return 0
	}

	m := s.Mean()
	tw := s.TotalWeight()
	var ss float64
	for i, v := range s.values {
		d := v - m
		ss += s.weights[i] * d * d
	}

	return ss / tw * float64(n) / float64(n-1)
}

func (s *Weighted) StandardDeviation() float64 { return math.Sqrt(s.Variance()) }

// Percentile returns the weighted percentile: the value below which p
// percent of the total weight lies.
func (s *Weighted) Percentile(p float64) float64 {
	n := len(s.values)
	if n == 0 {
		return math.NaN()
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return s.values[idx[a]] < s.values[idx[b]] })

	if p <= 0 {
		return s.values[idx[0]]
	}
	if p >= 100 {
		return s.values[idx[n-1]]
	}

	target := p / 100 * s.TotalWeight()
	var acc float64
	for _, i := range idx {
		acc += s.weights[i]
		if acc >= target {
			return s.values[i]
		}
	}

	return s.values[idx[n-1]]
}

func (s *Weighted) MeanErrorAt(confidence float64) float64 {
	return meanErrorAt(s, confidence)
}

func (s *Weighted) ConfidenceIntervalAt(confidence float64) Interval {
	return confidenceIntervalAt(s, confidence)
}
