package bench

import (
	"fmt"
	"sort"

	"github.com/weiihann/hotloop/infra"
)

// ParamSpec declares a benchmark parameter and its default values. The
// benchmark runs once per combination of parameter values.
type ParamSpec struct {
	Name   string
	Kind   infra.Kind
	Values []string
}

// Parse converts raw values for this parameter.
func (p ParamSpec) Parse(raw []string) ([]infra.Value, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("parameter %q has no values", p.Name)
	}

	out := make([]infra.Value, len(raw))
	for i, s := range raw {
		v, err := infra.ParseValue(p.Kind, s)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		out[i] = v
	}

	return out, nil
}

// Combinations returns the cartesian product of the parameter values in
// declaration order, the last parameter varying fastest. overrides replaces
// the declared values of the named parameters; naming an undeclared
// parameter is an error.
func Combinations(specs []ParamSpec, overrides map[string][]string) ([]infra.Params, error) {
	declared := make(map[string]bool, len(specs))
	for _, s := range specs {
		declared[s.Name] = true
	}

	var unknown []string
	for name := range overrides {
		if !declared[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)

		return nil, fmt.Errorf("unknown parameters %v", unknown)
	}

	values := make([][]infra.Value, len(specs))
	for i, s := range specs {
		raw := s.Values
		if o, ok := overrides[s.Name]; ok {
			raw = o
		}
		vs, err := s.Parse(raw)
		if err != nil {
			return nil, err
		}
		values[i] = vs
	}

	combos := []infra.Params{nil}
	for i, s := range specs {
		next := make([]infra.Params, 0, len(combos)*len(values[i]))
		for _, c := range combos {
			for _, v := range values[i] {
				p := make(infra.Params, len(c), len(c)+1)
				copy(p, c)
				next = append(next, append(p, infra.Binding{Name: s.Name, Value: v}))
			}
		}
		combos = next
	}

	return combos, nil
}
