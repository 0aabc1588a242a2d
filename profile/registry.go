package profile

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/weiihann/hotloop/options"
)

// Factory builds a profiler from its initialisation string.
type Factory func(init string, logger *slog.Logger) (Profiler, error)

// Descriptor describes a profiler implementation.
type Descriptor struct {
	Name        string
	Aliases     []string
	Description string
	External    bool
	New         Factory
}

var registry = map[string]Descriptor{}

// Register makes a profiler available by name. It panics on a name clash.
func Register(d Descriptor) {
	for _, n := range append([]string{d.Name}, d.Aliases...) {
		if _, ok := registry[n]; ok {
			panic(fmt.Sprintf("profiler %q registered twice", n))
		}
		registry[n] = d
	}
}

func init() {
	Register(Descriptor{
		Name:        gcName,
		Aliases:     []string{"alloc"},
		Description: "Heap allocation and GC activity, normalised per operation",
		New:         newGC,
	})
	Register(Descriptor{
		Name:        cpuName,
		Aliases:     []string{"pprof"},
		Description: "Sampled CPU profile of the measured iterations, top functions by flat time",
		New:         newCPU,
	})
	Register(Descriptor{
		Name:        rusageName,
		Description: "Process resource usage: CPU time, page faults, context switches",
		New:         newRusage,
	})
	Register(Descriptor{
		Name:        perfStatName,
		Aliases:     []string{"perfnorm"},
		Description: "Hardware counters from `perf stat` wrapped around the fork, normalised per operation",
		External:    true,
		New:         newPerfStat,
	})
}

// Lookup returns the profiler answering to name.
func Lookup(name string) (Descriptor, bool) {
	d, ok := registry[name]

	return d, ok
}

// List returns every registered profiler once, sorted by name.
func List() []Descriptor {
	seen := make(map[string]bool)
	var out []Descriptor
	for _, d := range registry {
		if !seen[d.Name] {
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Instantiate builds the profilers of a run. Asking for the same
// implementation twice, under any of its names, fails before anything is
// constructed. Profilers the host cannot support are logged and skipped;
// every other construction error is returned.
func Instantiate(cfgs []options.ProfilerConfig, logger *slog.Logger) (*Set, error) {
	descs := make([]Descriptor, len(cfgs))
	seen := make(map[string]bool, len(cfgs))

	for i, c := range cfgs {
		d, ok := Lookup(c.Name)
		if !ok {
			return nil, fmt.Errorf("%q: %w", c.Name, ErrUnknownProfiler)
		}
		if seen[d.Name] {
			return nil, &DuplicateError{Name: d.Name}
		}
		seen[d.Name] = true
		descs[i] = d
	}

	set := &Set{}
	for i, d := range descs {
		p, err := d.New(cfgs[i].Init, logger)
		if errors.Is(err, ErrProfilerUnavailable) {
			logger.Warn("profiler unavailable, skipping",
				slog.String("profiler", d.Name),
				slog.String("reason", err.Error()),
			)

			continue
		}
		if err != nil {
			return nil, err
		}

		switch p := p.(type) {
		case Internal:
			set.Internal = append(set.Internal, p)
		case External:
			set.External = append(set.External, p)
		default:
			return nil, fmt.Errorf("profiler %s is neither internal nor external", d.Name)
		}
	}

	return set, nil
}

// Split separates configurations by the family of the profiler they name.
// Unknown names stay with the internal ones so Instantiate reports them.
func Split(cfgs []options.ProfilerConfig) (internal, external []options.ProfilerConfig) {
	for _, c := range cfgs {
		if d, ok := Lookup(c.Name); ok && d.External {
			external = append(external, c)

			continue
		}
		internal = append(internal, c)
	}

	return internal, external
}
