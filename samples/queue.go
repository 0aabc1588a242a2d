package samples

import (
	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/blackhole"
	"github.com/weiihann/hotloop/infra"
)

type queue struct {
	ch chan int
}

// ProducerConsumer runs a producer and a consumer against a queue shared
// within each group. Neither side blocks, so a stopped partner never stalls
// the other at the end of an iteration.
func ProducerConsumer() *bench.Benchmark {
	qs := bench.DefineState("queue", bench.GroupScope, func(p infra.Params) (*queue, error) {
		return &queue{ch: make(chan int, p.Int("capacity"))}, nil
	}).TearDown(bench.Iteration, func(q *queue) error {
		for {
			select {
			case <-q.ch:
			default:
				return nil
			}
		}
	})

	return &bench.Benchmark{
		Name:   "ProducerConsumer",
		States: []*bench.StateSpec{qs.Spec()},
		Params: []bench.ParamSpec{
			{Name: "capacity", Kind: infra.KindInt, Values: []string{"16", "1024"}},
		},
		Methods: []bench.Method{
			{
				Name:    "produce",
				Threads: 1,
				Bind: func(t *bench.Thread) (bench.Op, error) {
					q := bench.StateFor[queue](t, "queue")
					n := 0

					return func(bh *blackhole.Blackhole) error {
						select {
						case q.ch <- n:
							n++
						default:
							bh.ConsumeBool(false)
						}

						return nil
					}, nil
				},
			},
			{
				Name:    "consume",
				Threads: 1,
				Bind: func(t *bench.Thread) (bench.Op, error) {
					q := bench.StateFor[queue](t, "queue")

					return func(bh *blackhole.Blackhole) error {
						select {
						case v := <-q.ch:
							bh.ConsumeInt(v)
						default:
							bh.ConsumeBool(true)
						}

						return nil
					}, nil
				},
			},
		},
	}
}
