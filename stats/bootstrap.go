package stats

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	mstats "github.com/montanaflynn/stats"
)

// DefaultResamples is the number of bootstrap resamples used for percentile
// confidence intervals.
const DefaultResamples = 1000

// bootstrapSeed makes repeated reports of the same data identical.
const bootstrapSeed = 0x9E3779B97F4A7C15

// BootstrapPercentile estimates a confidence interval for the p-th
// percentile of s by resampling with replacement and taking the percentiles
// of the resulting percentile distribution. Analytic intervals for tail
// percentiles of skewed latency data are unreliable, which is why this is
// used for sample-time derivatives.
func BootstrapPercentile(
	s *List,
	p, confidence float64,
	resamples int,
) (Interval, error) {
	cis, err := BootstrapPercentiles(s, []float64{p}, confidence, resamples)
	if err != nil {
		return Invalid(), err
	}

	return cis[0], nil
}

// BootstrapPercentiles is BootstrapPercentile for several percentiles at
// once. Every resample is shared by all ps, so the cost is that of a single
// percentile.
func BootstrapPercentiles(
	s *List,
	ps []float64,
	confidence float64,
	resamples int,
) ([]Interval, error) {
	n := int(s.N())
	if n < MinSamplesForError {
		return nil, fmt.Errorf("bootstrap over %d samples: %w", n, ErrInsufficientData)
	}
	if resamples <= 0 {
		resamples = DefaultResamples
	}

	sorted := s.Sorted()
	rng := rand.New(rand.NewPCG(bootstrapSeed, uint64(n)))

	type cut struct {
		lo, hi int
		weight float64
		idx    int
	}

	cuts := make([]cut, len(ps))
	for i, p := range ps {
		p = math.Max(0, math.Min(100, p))
		rank := p / 100 * float64(n-1)
		lo := int(math.Floor(rank))
		cuts[i] = cut{lo: lo, hi: int(math.Ceil(rank)), weight: rank - float64(lo), idx: i}
	}
	slices.SortFunc(cuts, func(a, b cut) int { return a.lo - b.lo })

	// Resampling sorted data by index and counting occurrences lets the
	// percentiles be read off one cumulative walk without sorting each
	// resample.
	counts := make([]int32, n)
	estimates := make([][]float64, len(ps))
	for i := range estimates {
		estimates[i] = make([]float64, resamples)
	}
	ranks := make([]int, 0, 2*len(cuts))
	values := make([]float64, 2*len(cuts))

	for _, c := range cuts {
		ranks = append(ranks, c.lo, c.hi)
	}
	order := make([]int, len(ranks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return ranks[a] - ranks[b] })

	for r := 0; r < resamples; r++ {
		clear(counts)
		for i := 0; i < n; i++ {
			counts[rng.IntN(n)]++
		}

		readRanks(sorted, counts, ranks, order, values)
		for k, c := range cuts {
			lo, hi := values[2*k], values[2*k+1]
			estimates[c.idx][r] = lo*(1-c.weight) + hi*c.weight
		}
	}

	alpha := (1 - confidence) / 2
	out := make([]Interval, len(ps))
	for i, est := range estimates {
		slices.Sort(est)
		out[i] = Interval{
			Lower: percentileSorted(est, alpha*100),
			Upper: percentileSorted(est, (1-alpha)*100),
		}
	}

	return out, nil
}

// readRanks fills values[j] with the element at rank ranks[j] of the
// resample described by counts over sorted. order visits ranks ascending.
func readRanks(sorted []float64, counts []int32, ranks, order []int, values []float64) {
	next := 0
	seen := 0

	for i, c := range counts {
		if c == 0 {
			continue
		}
		seen += int(c)
		for next < len(order) && seen > ranks[order[next]] {
			values[order[next]] = sorted[i]
			next++
		}
		if next == len(order) {
			return
		}
	}

	for ; next < len(order); next++ {
		values[order[next]] = sorted[len(sorted)-1]
	}
}

// OutlierSummary counts Tukey-fence outliers.
type OutlierSummary struct {
	Mild    int `json:"mild" yaml:"mild"`
	Extreme int `json:"extreme" yaml:"extreme"`
}

// Outliers classifies the values of s against the quartile fences. It
// returns a zero summary for fewer than four values.
func Outliers(s *List) OutlierSummary {
	if s.N() < 4 {
		return OutlierSummary{}
	}

	o, err := mstats.QuartileOutliers(mstats.Float64Data(s.Values()))
	if err != nil {
		return OutlierSummary{}
	}

	return OutlierSummary{Mild: len(o.Mild), Extreme: len(o.Extreme)}
}
