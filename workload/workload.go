// Package workload generates deterministic data sets for benchmark state.
// The same Config always yields the same data, so every fork of a trial
// measures the same input.
package workload

import (
	"fmt"
	"math"
	mrand "math/rand"
	"slices"
)

// Distribution is the shape of generated values.
type Distribution string

const (
	Uniform     Distribution = "uniform"
	PowerLaw    Distribution = "power-law"
	Exponential Distribution = "exponential"
	// Sorted is Uniform in ascending order, the best case for most sorts.
	Sorted Distribution = "sorted"
)

// Distributions lists the supported distributions.
func Distributions() []Distribution {
	return []Distribution{Uniform, PowerLaw, Exponential, Sorted}
}

// ParseDistribution converts a parameter value into a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	for _, d := range Distributions() {
		if string(d) == s {
			return d, nil
		}
	}

	return "", fmt.Errorf("unknown distribution %q", s)
}

// Config controls data set generation.
type Config struct {
	Size         int
	Min          int
	Max          int
	Distribution Distribution
	Seed         int64
}

// Validate checks the generation bounds.
func (c Config) Validate() error {
	if c.Size < 0 {
		return fmt.Errorf("size must not be negative, got %d", c.Size)
	}
	if c.Min < 0 || c.Max < c.Min {
		return fmt.Errorf("invalid value range [%d, %d]", c.Min, c.Max)
	}
	if _, err := ParseDistribution(string(c.Distribution)); err != nil {
		return err
	}

	return nil
}

// Generator produces deterministic data sets from a Config.
type Generator struct {
	cfg Config
	rng *mrand.Rand
}

// NewGenerator creates a Generator from the given Config.
func NewGenerator(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("workload: %w", err)
	}

	return &Generator{
		cfg: cfg,
		rng: mrand.New(mrand.NewSource(cfg.Seed)),
	}, nil
}

// Ints returns Size values in [Min, Max] drawn from the distribution.
func (g *Generator) Ints() []int {
	out := make([]int, g.cfg.Size)

	switch g.cfg.Distribution {
	case PowerLaw:
		alpha := 1.5
		lo := float64(max(g.cfg.Min, 1))
		for i := range out {
			u := g.rng.Float64()
			v := lo / math.Pow(1-u, 1/alpha)
			if v > float64(g.cfg.Max) {
				v = float64(g.cfg.Max)
			}
			out[i] = max(g.cfg.Min, int(v))
		}

	case Exponential:
		lambda := math.Log(2) / float64(max(g.cfg.Max/4, 1))
		for i := range out {
			u := g.rng.Float64()
			v := -math.Log(1-u) / lambda
			clamped := math.Max(
				float64(g.cfg.Min),
				math.Min(v, float64(g.cfg.Max)),
			)
			out[i] = int(clamped)
		}

	default:
		span := g.cfg.Max - g.cfg.Min + 1
		for i := range out {
			out[i] = g.cfg.Min + g.rng.Intn(span)
		}
		if g.cfg.Distribution == Sorted {
			slices.Sort(out)
		}
	}

	return out
}

// Keys returns Size distinct keys in random order.
func (g *Generator) Keys() []int {
	return g.rng.Perm(g.cfg.Size)
}

// Bytes returns n random bytes.
func (g *Generator) Bytes(n int) []byte {
	buf := make([]byte, n)
	g.rng.Read(buf)

	return buf
}
