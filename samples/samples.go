// Package samples holds ready-made benchmarks. They calibrate a machine,
// demonstrate the registration API and serve as end-to-end fixtures.
package samples

import (
	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/blackhole"
	"github.com/weiihann/hotloop/infra"
)

// Seed makes every generated data set reproducible across forks and runs.
const Seed = 20240917

// Register adds every sample benchmark to reg.
func Register(reg *bench.Registry) error {
	for _, b := range All() {
		if err := reg.Register(b); err != nil {
			return err
		}
	}

	return nil
}

// All returns fresh declarations of the sample benchmarks.
func All() []*bench.Benchmark {
	return []*bench.Benchmark{
		Noop(),
		Alloc(),
		ConsumeCPU(),
		ProducerConsumer(),
		Sort(),
		MapLookup(),
	}
}

// Noop measures the harness overhead of one invocation.
func Noop() *bench.Benchmark {
	return &bench.Benchmark{
		Name: "Noop",
		Methods: []bench.Method{{Op: func(*blackhole.Blackhole) error {
			return nil
		}}},
	}
}

// Alloc allocates a buffer of the given size per operation.
func Alloc() *bench.Benchmark {
	return &bench.Benchmark{
		Name: "Alloc",
		Params: []bench.ParamSpec{
			{Name: "bytes", Kind: infra.KindInt, Values: []string{"64", "1024"}},
		},
		Methods: []bench.Method{{Bind: func(t *bench.Thread) (bench.Op, error) {
			n := t.Params().Int("bytes")

			return func(bh *blackhole.Blackhole) error {
				bh.ConsumeBytes(make([]byte, n))

				return nil
			}, nil
		}}},
	}
}

// ConsumeCPU burns a fixed number of tokens, so its cost should grow
// linearly with the parameter.
func ConsumeCPU() *bench.Benchmark {
	return &bench.Benchmark{
		Name: "ConsumeCPU",
		Params: []bench.ParamSpec{
			{Name: "tokens", Kind: infra.KindInt, Values: []string{"10", "100", "1000"}},
		},
		Methods: []bench.Method{{Bind: func(t *bench.Thread) (bench.Op, error) {
			tokens := int64(t.Params().Int("tokens"))

			return func(*blackhole.Blackhole) error {
				blackhole.ConsumeCPU(tokens)

				return nil
			}, nil
		}}},
	}
}
