package infra

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind is the type of a benchmark parameter.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDuration
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDuration:
		return "duration"
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindString; k <= KindDuration; k++ {
		if k.String() == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown parameter kind %q", s)
}

// Value is a parameter value tagged with its kind. Raw keeps the exact text
// the value was parsed from, which is what reports print.
type Value struct {
	Kind  Kind
	Raw   string
	Bool  bool
	Int   int64
	Float float64
}

// ParseValue converts raw into a Value of the given kind.
func ParseValue(kind Kind, raw string) (Value, error) {
	v := Value{Kind: kind, Raw: raw}
	trimmed := strings.TrimSpace(raw)

	switch kind {
	case KindString:
	case KindBool:
		b, err := strconv.ParseBool(trimmed)
		if err != nil {
			return Value{}, fmt.Errorf("parameter value %q is not a bool", raw)
		}
		v.Bool = b
	case KindInt:
		n, err := strconv.ParseInt(trimmed, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parameter value %q is not an int", raw)
		}
		v.Int = n
	case KindFloat:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return Value{}, fmt.Errorf("parameter value %q is not a float", raw)
		}
		v.Float = f
	case KindDuration:
		d, err := ParseDuration(trimmed)
		if err != nil {
			return Value{}, fmt.Errorf("parameter value %q is not a duration", raw)
		}
		v.Int = int64(d)
	default:
		return Value{}, fmt.Errorf("unsupported parameter kind %v", kind)
	}

	return v, nil
}

func (v Value) String() string { return v.Raw }

// Binding is one named parameter value.
type Binding struct {
	Name  string
	Value Value
}

// Params is an ordered set of parameter bindings. The order is the order
// parameters were declared in.
type Params []Binding

// Get returns the binding named name.
func (p Params) Get(name string) (Value, bool) {
	for _, b := range p {
		if b.Name == name {
			return b.Value, true
		}
	}

	return Value{}, false
}

// String returns the raw value of name, or "" if unbound.
func (p Params) String(name string) string {
	v, _ := p.Get(name)

	return v.Raw
}

// Int returns the int value of name. It panics if the parameter is not an
// int parameter, which is a declaration bug.
func (p Params) Int(name string) int {
	v := p.must(name, KindInt)

	return int(v.Int)
}

// Float returns the float value of name.
func (p Params) Float(name string) float64 {
	return p.must(name, KindFloat).Float
}

// Bool returns the bool value of name.
func (p Params) Bool(name string) bool {
	return p.must(name, KindBool).Bool
}

func (p Params) must(name string, kind Kind) Value {
	v, ok := p.Get(name)
	if !ok {
		panic(fmt.Sprintf("parameter %q is not bound", name))
	}
	if v.Kind != kind {
		panic(fmt.Sprintf("parameter %q is %v, not %v", name, v.Kind, kind))
	}

	return v
}

// Key renders the bindings as "a=1,b=x" for identity and display.
func (p Params) Key() string {
	parts := make([]string, len(p))
	for i, b := range p {
		parts[i] = b.Name + "=" + b.Value.Raw
	}

	return strings.Join(parts, ",")
}

// Names returns the parameter names in declaration order.
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, b := range p {
		names[i] = b.Name
	}

	return names
}

// Equal reports whether both sets bind the same names to the same raw
// values in the same order.
func (p Params) Equal(o Params) bool {
	return slices.EqualFunc(p, o, func(a, b Binding) bool {
		return a.Name == b.Name && a.Value.Kind == b.Value.Kind && a.Value.Raw == b.Value.Raw
	})
}
