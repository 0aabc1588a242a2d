// Package bench is the registration API benchmark authors use to describe a
// benchmark's methods, state objects, lifecycle hooks and parameters.
package bench

import (
	"fmt"

	"github.com/weiihann/hotloop/blackhole"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/options"
)

// Op is one invocation of a benchmark body. Values the body computes must be
// handed to bh so the compiler cannot discard the work.
type Op func(bh *blackhole.Blackhole) error

// Method is one benchmark body. A benchmark with several methods is a group
// benchmark: its methods run concurrently, Threads of each per group.
type Method struct {
	Name string
	// Threads is the method's share of each group. Zero means 1.
	Threads int
	// Bind is called once per worker per trial, after state objects exist,
	// and returns the body that worker runs. Either Bind or Op must be set.
	Bind func(t *Thread) (Op, error)
	Op   Op
}

// Benchmark describes a benchmark.
type Benchmark struct {
	Name    string
	Methods []Method
	States  []*StateSpec
	Params  []ParamSpec
	// Defaults are the benchmark's own option defaults. Explicit options
	// override them; they override the system defaults.
	Defaults options.Options
}

// IsGroup reports whether the benchmark co-schedules several methods.
func (b *Benchmark) IsGroup() bool { return len(b.Methods) > 1 }

// Ratios returns the per-method thread counts of one group instance.
func (b *Benchmark) Ratios() []int {
	if !b.IsGroup() {
		return nil
	}

	out := make([]int, len(b.Methods))
	for i, m := range b.Methods {
		out[i] = max(m.Threads, 1)
	}

	return out
}

// MethodNames returns the method names in declaration order.
func (b *Benchmark) MethodNames() []string {
	out := make([]string, len(b.Methods))
	for i, m := range b.Methods {
		out[i] = m.Name
	}

	return out
}

// State returns the state spec named name.
func (b *Benchmark) State(name string) (*StateSpec, bool) {
	for _, s := range b.States {
		if s.Name == name {
			return s, true
		}
	}

	return nil, false
}

// Validate checks the declaration.
func (b *Benchmark) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("benchmark has no name")
	}
	if len(b.Methods) == 0 {
		return fmt.Errorf("benchmark %s declares no methods", b.Name)
	}

	methods := make(map[string]bool, len(b.Methods))
	for i, m := range b.Methods {
		if m.Name == "" && b.IsGroup() {
			return fmt.Errorf("benchmark %s: group method %d has no name", b.Name, i)
		}
		if methods[m.Name] {
			return fmt.Errorf("benchmark %s: duplicate method %q", b.Name, m.Name)
		}
		methods[m.Name] = true
		if m.Bind == nil && m.Op == nil {
			return fmt.Errorf("benchmark %s: method %q has neither Bind nor Op", b.Name, m.Name)
		}
		if m.Threads < 0 {
			return fmt.Errorf("benchmark %s: method %q has negative thread share", b.Name, m.Name)
		}
	}

	states := make(map[string]bool, len(b.States))
	for _, s := range b.States {
		if err := s.validate(); err != nil {
			return fmt.Errorf("benchmark %s: %w", b.Name, err)
		}
		if states[s.Name] {
			return fmt.Errorf("benchmark %s: duplicate state %q", b.Name, s.Name)
		}
		states[s.Name] = true
		if s.Scope == GroupScope && !b.IsGroup() {
			return fmt.Errorf("benchmark %s: state %q has group scope but the benchmark has one method",
				b.Name, s.Name)
		}
	}

	params := make(map[string]bool, len(b.Params))
	for _, p := range b.Params {
		if params[p.Name] {
			return fmt.Errorf("benchmark %s: duplicate parameter %q", b.Name, p.Name)
		}
		params[p.Name] = true
		if _, err := p.Parse(p.Values); err != nil {
			return fmt.Errorf("benchmark %s: %w", b.Name, err)
		}
	}

	return nil
}

// Thread is a worker's view of its trial: its position in the pool and the
// state objects visible to it.
type Thread struct {
	Position  infra.ThreadParams
	Benchmark infra.BenchmarkParams
	states    map[string]any
}

// NewThread returns the view for one worker.
func NewThread(pos infra.ThreadParams, bp infra.BenchmarkParams, states map[string]any) *Thread {
	return &Thread{Position: pos, Benchmark: bp, states: states}
}

// Params returns the trial's parameter bindings.
func (t *Thread) Params() infra.Params { return t.Benchmark.Params }

// State returns the state object named name, or nil.
func (t *Thread) State(name string) any { return t.states[name] }

// StateFor returns the state object named name as *T. It panics on a name or
// type that does not match the declaration; that is a benchmark bug and the
// worker turns the panic into an execution error.
func StateFor[T any](t *Thread, name string) *T {
	v, ok := t.states[name]
	if !ok {
		panic(fmt.Sprintf("state %q is not declared", name))
	}
	s, ok := v.(*T)
	if !ok {
		panic(fmt.Sprintf("state %q is %T, not %T", name, v, s))
	}

	return s
}
