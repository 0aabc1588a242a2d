// Package infra holds the immutable descriptions of a benchmark run and the
// control block shared by the workers of one iteration.
package infra

import (
	"fmt"
	"strings"
)

// Mode selects what the timing loop measures.
type Mode int

const (
	// Throughput counts operations per unit of time.
	Throughput Mode = iota + 1
	// AverageTime reports the average time per operation.
	AverageTime
	// SampleTime samples individual operation times.
	SampleTime
	// SingleShotTime times one batch of operations per iteration.
	SingleShotTime
)

var modeNames = map[Mode]struct{ short, long string }{
	Throughput:     {"thrpt", "Throughput, ops/time"},
	AverageTime:    {"avgt", "Average time, time/op"},
	SampleTime:     {"sample", "Sampling time"},
	SingleShotTime: {"ss", "Single shot invocation time"},
}

// AllModes lists every mode in reporting order.
func AllModes() []Mode {
	return []Mode{Throughput, AverageTime, SampleTime, SingleShotTime}
}

// String returns the short label used in tables and on the command line.
func (m Mode) String() string {
	if n, ok := modeNames[m]; ok {
		return n.short
	}

	return fmt.Sprintf("mode(%d)", int(m))
}

// Description returns the long human label.
func (m Mode) Description() string {
	if n, ok := modeNames[m]; ok {
		return n.long
	}

	return m.String()
}

// Timed reports whether the mode runs until a deadline rather than for a
// fixed number of batches.
func (m Mode) Timed() bool {
	return m != SingleShotTime
}

// ParseMode accepts either the short or the long form, case-insensitively.
// "all" is handled by ParseModes.
func ParseMode(s string) (Mode, error) {
	s = strings.TrimSpace(s)
	for m, n := range modeNames {
		if strings.EqualFold(s, n.short) || strings.EqualFold(s, n.long) {
			return m, nil
		}
	}
	switch strings.ToLower(s) {
	case "throughput":
		return Throughput, nil
	case "averagetime":
		return AverageTime, nil
	case "sampletime":
		return SampleTime, nil
	case "singleshottime", "singleshot":
		return SingleShotTime, nil
	}

	return 0, fmt.Errorf("unknown benchmark mode %q", s)
}

// ParseModes parses a comma-separated list of modes. "all" expands to every
// mode.
func ParseModes(s string) ([]Mode, error) {
	var modes []Mode
	seen := make(map[Mode]bool)

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.EqualFold(part, "all") {
			return AllModes(), nil
		}
		m, err := ParseMode(part)
		if err != nil {
			return nil, err
		}
		if !seen[m] {
			seen[m] = true
			modes = append(modes, m)
		}
	}

	if len(modes) == 0 {
		return nil, fmt.Errorf("no benchmark modes in %q", s)
	}

	return modes, nil
}
