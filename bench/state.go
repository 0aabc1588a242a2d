package bench

import (
	"fmt"

	"github.com/weiihann/hotloop/infra"
)

// Scope is how widely a state object is shared.
type Scope int

const (
	// ThreadScope gives every worker its own instance.
	ThreadScope Scope = iota
	// BenchmarkScope shares one instance among all workers.
	BenchmarkScope
	// GroupScope shares one instance among the workers of a group instance.
	GroupScope
)

func (s Scope) String() string {
	switch s {
	case ThreadScope:
		return "thread"
	case BenchmarkScope:
		return "benchmark"
	case GroupScope:
		return "group"
	}

	return fmt.Sprintf("scope(%d)", int(s))
}

// Level is when a lifecycle hook runs.
type Level int

const (
	// Trial hooks run before the first and after the last iteration of a
	// fork.
	Trial Level = iota
	// Iteration hooks run around every iteration.
	Iteration
	// Invocation hooks run around every call of the benchmark body. Their
	// cost is measured and subtracted from the result.
	Invocation
)

func (l Level) String() string {
	switch l {
	case Trial:
		return "trial"
	case Iteration:
		return "iteration"
	case Invocation:
		return "invocation"
	}

	return fmt.Sprintf("level(%d)", int(l))
}

// Hook is a setup or teardown function of a state object.
type Hook struct {
	Level Level
	Fn    func(state any) error
}

// StateSpec declares a state object.
type StateSpec struct {
	Name     string
	Scope    Scope
	New      func(p infra.Params) (any, error)
	Setup    []Hook
	TearDown []Hook
}

// Hooks returns the setup or teardown hooks at level.
func (s *StateSpec) Hooks(setup bool, level Level) []Hook {
	src := s.TearDown
	if setup {
		src = s.Setup
	}

	var out []Hook
	for _, h := range src {
		if h.Level == level {
			out = append(out, h)
		}
	}

	return out
}

// HasLevel reports whether any hook runs at level.
func (s *StateSpec) HasLevel(level Level) bool {
	return len(s.Hooks(true, level)) > 0 || len(s.Hooks(false, level)) > 0
}

func (s *StateSpec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("state has no name")
	}
	if s.New == nil {
		return fmt.Errorf("state %q has no constructor", s.Name)
	}
	if s.Scope < ThreadScope || s.Scope > GroupScope {
		return fmt.Errorf("state %q has invalid scope %d", s.Name, int(s.Scope))
	}
	for _, h := range append(append([]Hook{}, s.Setup...), s.TearDown...) {
		if h.Fn == nil {
			return fmt.Errorf("state %q has a nil %s hook", s.Name, h.Level)
		}
		if h.Level < Trial || h.Level > Invocation {
			return fmt.Errorf("state %q has a hook with invalid level %d", s.Name, int(h.Level))
		}
	}

	return nil
}

// StateDef builds a StateSpec for a concrete state type.
type StateDef[T any] struct {
	spec *StateSpec
}

// DefineState starts the declaration of a state object of type T.
func DefineState[T any](name string, scope Scope, newFn func(p infra.Params) (*T, error)) *StateDef[T] {
	return &StateDef[T]{spec: &StateSpec{
		Name:  name,
		Scope: scope,
		New: func(p infra.Params) (any, error) {
			return newFn(p)
		},
	}}
}

// Setup adds a setup hook.
func (d *StateDef[T]) Setup(level Level, fn func(*T) error) *StateDef[T] {
	d.spec.Setup = append(d.spec.Setup, Hook{Level: level, Fn: typed(fn)})

	return d
}

// TearDown adds a teardown hook.
func (d *StateDef[T]) TearDown(level Level, fn func(*T) error) *StateDef[T] {
	d.spec.TearDown = append(d.spec.TearDown, Hook{Level: level, Fn: typed(fn)})

	return d
}

// Spec returns the declaration.
func (d *StateDef[T]) Spec() *StateSpec { return d.spec }

func typed[T any](fn func(*T) error) func(any) error {
	return func(v any) error {
		return fn(v.(*T))
	}
}
