package bench

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Registry holds the benchmarks compiled into a binary.
type Registry struct {
	mu      sync.RWMutex
	benches map[string]*Benchmark
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{benches: make(map[string]*Benchmark)}
}

// Default is the registry used by Register.
var Default = NewRegistry()

// Register adds b to the default registry.
func Register(b *Benchmark) error { return Default.Register(b) }

// Register validates and adds b.
func (r *Registry) Register(b *Benchmark) error {
	if err := b.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.benches[b.Name]; ok {
		return fmt.Errorf("benchmark %s is already registered", b.Name)
	}
	r.benches[b.Name] = b

	return nil
}

// MustRegister is Register for package initialisation. It panics on error.
func (r *Registry) MustRegister(bs ...*Benchmark) {
	for _, b := range bs {
		if err := r.Register(b); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the benchmark named name.
func (r *Registry) Lookup(name string) (*Benchmark, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.benches[name]

	return b, ok
}

// All returns every benchmark sorted by name.
func (r *Registry) All() []*Benchmark {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Benchmark, 0, len(r.benches))
	for _, b := range r.benches {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Select returns the benchmarks whose names match any include pattern and
// no exclude pattern, sorted by name. No include patterns selects all.
func (r *Registry) Select(includes, excludes []string) ([]*Benchmark, error) {
	inc, err := compileAll(includes)
	if err != nil {
		return nil, err
	}
	exc, err := compileAll(excludes)
	if err != nil {
		return nil, err
	}

	var out []*Benchmark
	for _, b := range r.All() {
		if len(inc) > 0 && !matchAny(inc, b.Name) {
			continue
		}
		if matchAny(exc, b.Name) {
			continue
		}
		out = append(out, b)
	}

	return out, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("benchmark pattern %q: %w", p, err)
		}
		out = append(out, re)
	}

	return out, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}

	return false
}
