package infra

import (
	"errors"
	"fmt"
)

// ErrThreadDistribution is returned when the worker pool cannot be
// partitioned according to the declared group ratios.
var ErrThreadDistribution = errors.New("harness failed to distribute threads among groups properly")

// ThreadParams is the position of one worker in the iteration's thread pool.
type ThreadParams struct {
	// ThreadIndex is the worker's ordinal in the pool.
	ThreadIndex int
	ThreadCount int
	// GroupIndex is which group instance the worker belongs to.
	GroupIndex int
	GroupCount int
	// GroupThreadIndex is the worker's ordinal within its group instance.
	GroupThreadIndex int
	GroupThreadCount int
	// Subgroup is the method the worker runs.
	Subgroup            int
	SubgroupThreadIndex int
	SubgroupThreadCount int
}

// Distribute builds the immutable assignment table for threads workers over
// a benchmark whose group declares ratios (nil or one element for a plain
// benchmark). Thread counts must be a multiple of the group size.
func Distribute(threads int, ratios []int) ([]ThreadParams, error) {
	if len(ratios) == 0 {
		ratios = []int{1}
	}

	groupSize := 0
	for _, r := range ratios {
		if r <= 0 {
			return nil, fmt.Errorf("ratio %v: %w", ratios, ErrThreadDistribution)
		}
		groupSize += r
	}

	if threads <= 0 || threads%groupSize != 0 {
		return nil, fmt.Errorf("%d threads over group of %d: %w",
			threads, groupSize, ErrThreadDistribution)
	}

	groups := threads / groupSize
	table := make([]ThreadParams, 0, threads)

	for g := 0; g < groups; g++ {
		inGroup := 0
		for sg, r := range ratios {
			for s := 0; s < r; s++ {
				table = append(table, ThreadParams{
					ThreadIndex:         len(table),
					ThreadCount:         threads,
					GroupIndex:          g,
					GroupCount:          groups,
					GroupThreadIndex:    inGroup,
					GroupThreadCount:    groupSize,
					Subgroup:            sg,
					SubgroupThreadIndex: s,
					SubgroupThreadCount: r,
				})
				inGroup++
			}
		}
	}

	if err := checkDistribution(table, ratios, groups); err != nil {
		return nil, err
	}

	return table, nil
}

// checkDistribution verifies every group instance got exactly the declared
// number of workers per method.
func checkDistribution(table []ThreadParams, ratios []int, groups int) error {
	counts := make([][]int, groups)
	for g := range counts {
		counts[g] = make([]int, len(ratios))
	}

	for i, tp := range table {
		if tp.ThreadIndex != i || tp.GroupIndex >= groups || tp.Subgroup >= len(ratios) {
			return ErrThreadDistribution
		}
		counts[tp.GroupIndex][tp.Subgroup]++
	}

	for g := range counts {
		for sg, n := range counts[g] {
			if n != ratios[sg] {
				return fmt.Errorf("group %d method %d has %d threads, want %d: %w",
					g, sg, n, ratios[sg], ErrThreadDistribution)
			}
		}
	}

	return nil
}

// RoundThreads rounds threads up to a multiple of the group size.
func RoundThreads(threads int, ratios []int) int {
	size := 0
	for _, r := range ratios {
		size += r
	}
	if size <= 1 {
		return max(threads, 1)
	}
	if threads < size {
		return size
	}
	if rem := threads % size; rem != 0 {
		return threads + size - rem
	}

	return threads
}
