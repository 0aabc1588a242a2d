package samples

import (
	"fmt"
	"slices"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/blackhole"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/workload"
)

func generator(p infra.Params, maxValue int) (*workload.Generator, error) {
	dist, err := workload.ParseDistribution(p.String("distribution"))
	if err != nil {
		return nil, err
	}

	return workload.NewGenerator(workload.Config{
		Size:         p.Int("size"),
		Max:          maxValue,
		Distribution: dist,
		Seed:         Seed,
	})
}

type sortState struct {
	input []int
	work  []int
}

// Sort sorts a generated slice. The copy from the pristine input runs in an
// invocation hook, so it is excluded from the score.
func Sort() *bench.Benchmark {
	s := bench.DefineState("data", bench.ThreadScope, func(p infra.Params) (*sortState, error) {
		g, err := generator(p, 1<<20)
		if err != nil {
			return nil, err
		}
		input := g.Ints()

		return &sortState{input: input, work: make([]int, len(input))}, nil
	}).Setup(bench.Invocation, func(s *sortState) error {
		copy(s.work, s.input)

		return nil
	})

	return &bench.Benchmark{
		Name:   "Sort",
		States: []*bench.StateSpec{s.Spec()},
		Params: []bench.ParamSpec{
			{Name: "size", Kind: infra.KindInt, Values: []string{"100", "10000"}},
			{Name: "distribution", Kind: infra.KindString, Values: []string{"uniform", "sorted"}},
		},
		Methods: []bench.Method{{Bind: func(t *bench.Thread) (bench.Op, error) {
			s := bench.StateFor[sortState](t, "data")

			return func(bh *blackhole.Blackhole) error {
				slices.Sort(s.work)
				bh.ConsumeInts(s.work)

				return nil
			}, nil
		}}},
	}
}

type table struct {
	m    map[int]int
	keys []int
}

// MapLookup reads a shared map with keys drawn from a skewed distribution.
// Lookups of absent keys are part of the mix.
func MapLookup() *bench.Benchmark {
	s := bench.DefineState("table", bench.BenchmarkScope, func(p infra.Params) (*table, error) {
		size := p.Int("size")
		if size <= 0 {
			return nil, fmt.Errorf("size must be positive, got %d", size)
		}

		g, err := generator(p, 2*size)
		if err != nil {
			return nil, err
		}

		m := make(map[int]int, size)
		for i, k := range g.Keys() {
			m[k] = i
		}

		return &table{m: m, keys: g.Ints()}, nil
	})

	return &bench.Benchmark{
		Name:   "MapLookup",
		States: []*bench.StateSpec{s.Spec()},
		Params: []bench.ParamSpec{
			{Name: "size", Kind: infra.KindInt, Values: []string{"1024"}},
			{Name: "distribution", Kind: infra.KindString, Values: []string{"uniform", "power-law", "exponential"}},
		},
		Methods: []bench.Method{{Bind: func(t *bench.Thread) (bench.Op, error) {
			tbl := bench.StateFor[table](t, "table")
			i := t.Position.ThreadIndex

			return func(bh *blackhole.Blackhole) error {
				v, ok := tbl.m[tbl.keys[i%len(tbl.keys)]]
				i++
				bh.ConsumeInt(v)
				bh.ConsumeBool(ok)

				return nil
			}, nil
		}}},
	}
}
