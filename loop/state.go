package loop

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/blackhole"
	"github.com/weiihann/hotloop/infra"
)

// instance is one live state object. Shared instances serialise their hooks
// through the gate and remember which iteration they were last set up and
// torn down for, so each hook runs exactly once however many workers reach
// it.
type instance struct {
	spec   *bench.StateSpec
	value  any
	shared bool
	gate   gate

	trialUp   bool
	trialDown bool
	iterUp    uint64
	iterDown  uint64
}

func (in *instance) setupTrial() error {
	if in.shared {
		in.gate.lock()
		defer in.gate.unlock()
	}
	if in.trialUp {
		return nil
	}
	in.trialUp = true

	return runHooks(in.spec.Hooks(true, bench.Trial), in.value)
}

func (in *instance) tearDownTrial() error {
	if in.shared {
		in.gate.lock()
		defer in.gate.unlock()
	}
	if !in.trialUp || in.trialDown {
		return nil
	}
	in.trialDown = true

	return runHooks(in.spec.Hooks(false, bench.Trial), in.value)
}

func (in *instance) setupIteration(seq uint64) error {
	if in.shared {
		in.gate.lock()
		defer in.gate.unlock()
	}
	if in.iterUp == seq {
		return nil
	}
	in.iterUp = seq

	return runHooks(in.spec.Hooks(true, bench.Iteration), in.value)
}

func (in *instance) tearDownIteration(seq uint64) error {
	if in.shared {
		in.gate.lock()
		defer in.gate.unlock()
	}
	if in.iterUp != seq || in.iterDown == seq {
		return nil
	}
	in.iterDown = seq

	return runHooks(in.spec.Hooks(false, bench.Iteration), in.value)
}

// invocation hooks on shared state run on every calling worker, one at a
// time.
func (in *instance) invocation(setup bool) error {
	hooks := in.spec.Hooks(setup, bench.Invocation)
	if in.shared {
		in.gate.lock()
		defer in.gate.unlock()
	}

	return runHooks(hooks, in.value)
}

func runHooks(hooks []bench.Hook, v any) error {
	for _, h := range hooks {
		if err := h.Fn(v); err != nil {
			return err
		}
	}

	return nil
}

type instanceKey struct {
	name  string
	index int
}

// binding is everything one worker needs for an iteration.
type binding struct {
	method     string
	thread     *bench.Thread
	op         bench.Op
	bh         *blackhole.Blackhole
	states     []*instance
	invocation []*instance
}

// trialState owns the state objects, bound bodies and blackholes of one
// trial. Lookups happen before the measured loop, so a mutex is fine here.
type trialState struct {
	bench  *bench.Benchmark
	params infra.BenchmarkParams

	mu        sync.Mutex
	instances map[instanceKey]*instance
	order     []*instance
	ops       map[infra.ThreadParams]bench.Op
	holes     map[int]*blackhole.Blackhole
}

func newTrialState(b *bench.Benchmark, bp infra.BenchmarkParams) *trialState {
	return &trialState{
		bench:     b,
		params:    bp,
		instances: make(map[instanceKey]*instance),
		ops:       make(map[infra.ThreadParams]bench.Op),
		holes:     make(map[int]*blackhole.Blackhole),
	}
}

func (t *trialState) bind(pos infra.ThreadParams) (*binding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if pos.Subgroup < 0 || pos.Subgroup >= len(t.bench.Methods) {
		return nil, fmt.Errorf("thread %d routed to method %d of %d: %w",
			pos.ThreadIndex, pos.Subgroup, len(t.bench.Methods), infra.ErrThreadDistribution)
	}
	m := t.bench.Methods[pos.Subgroup]

	b := &binding{method: m.Name}
	values := make(map[string]any, len(t.bench.States))

	for _, spec := range t.bench.States {
		key := instanceKey{name: spec.Name}
		switch spec.Scope {
		case bench.ThreadScope:
			key.index = pos.ThreadIndex
		case bench.GroupScope:
			key.index = pos.GroupIndex
		case bench.BenchmarkScope:
		}

		in, ok := t.instances[key]
		if !ok {
			v, err := spec.New(t.params.Params)
			if err != nil {
				return nil, fmt.Errorf("create state %s: %w", spec.Name, err)
			}
			in = &instance{spec: spec, value: v, shared: spec.Scope != bench.ThreadScope}
			t.instances[key] = in
			t.order = append(t.order, in)
		}

		values[spec.Name] = in.value
		b.states = append(b.states, in)
		if spec.HasLevel(bench.Invocation) {
			b.invocation = append(b.invocation, in)
		}
	}

	b.thread = bench.NewThread(pos, t.params, values)

	op, ok := t.ops[pos]
	if !ok {
		op = m.Op
		if m.Bind != nil {
			var err error
			if op, err = m.Bind(b.thread); err != nil {
				return nil, fmt.Errorf("bind %s: %w", m.Name, err)
			}
		}
		if op == nil {
			return nil, fmt.Errorf("method %q bound to a nil body", m.Name)
		}
		t.ops[pos] = op
	}
	b.op = op

	bh, ok := t.holes[pos.ThreadIndex]
	if !ok {
		bh = blackhole.New()
		t.holes[pos.ThreadIndex] = bh
	}
	b.bh = bh

	return b, nil
}

// close tears down every instance whose trial setup ran and whose trial
// teardown did not, latest first.
func (t *trialState) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, in := range slices.Backward(t.order) {
		if err := in.tearDownTrial(); err != nil {
			errs = append(errs, fmt.Errorf("tear down state %s: %w", in.spec.Name, err))
		}
	}
	for _, bh := range t.holes {
		bh.Evaporate()
	}

	return errors.Join(errs...)
}
