package stats

import (
	"math"
	"slices"
)

// List retains every value it is given, so percentiles and bootstrap
// intervals are exact. Not safe for concurrent use.
type List struct {
	values []float64
	sorted bool
}

// NewList returns a List seeded with values. The slice is copied.
func NewList(values ...float64) *List {
	l := &List{values: make([]float64, 0, len(values))}
	l.values = append(l.values, values...)

	return l
}

// Add appends a value.
func (l *List) Add(v float64) {
	l.values = append(l.values, v)
	l.sorted = false
}

// AddAll appends all values of other. Merging by concatenation is the only
// way to combine percentile-bearing statistics.
func (l *List) AddAll(other *List) {
	if other == nil {
		return
	}
	l.values = append(l.values, other.values...)
	l.sorted = false
}

// Values returns a copy of the retained values in insertion order unless the
// list has been sorted by a percentile query.
func (l *List) Values() []float64 {
	return slices.Clone(l.values)
}

func (l *List) N() int64 { return int64(len(l.values)) }

func (l *List) Sum() float64 {
	var s float64
	for _, v := range l.values {
		s += v
	}

	return s
}

func (l *List) Min() float64 {
	if len(l.values) == 0 {
		return math.NaN()
	}

	return slices.Min(l.values)
}

func (l *List) Max() float64 {
	if len(l.values) == 0 {
		return math.NaN()
	}

	return slices.Max(l.values)
}

func (l *List) Mean() float64 {
	if len(l.values) == 0 {
		return math.NaN()
	}

	return l.Sum() / float64(len(l.values))
}

// Variance is the unbiased sample variance; zero for a single value.
func (l *List) Variance() float64 {
	n := len(l.values)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return 0
	}

	m := l.Mean()
	var ss float64
	for _, v := range l.values {
		d := v - m
		ss += d * d
	}

	return ss / float64(n-1)
}

func (l *List) StandardDeviation() float64 { return math.Sqrt(l.Variance()) }

func (l *List) Percentile(p float64) float64 {
	l.sort()

	return percentileSorted(l.values, p)
}

func (l *List) MeanErrorAt(confidence float64) float64 {
	return meanErrorAt(l, confidence)
}

func (l *List) ConfidenceIntervalAt(confidence float64) Interval {
	return confidenceIntervalAt(l, confidence)
}

func (l *List) sort() {
	if !l.sorted {
		slices.Sort(l.values)
		l.sorted = true
	}
}

// Sorted returns the values in ascending order. The returned slice aliases
// internal storage and must not be modified.
func (l *List) Sorted() []float64 {
	l.sort()

	return l.values
}
