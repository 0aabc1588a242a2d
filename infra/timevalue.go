package infra

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeUnit is the unit results are reported in.
type TimeUnit time.Duration

const (
	Nanoseconds  = TimeUnit(time.Nanosecond)
	Microseconds = TimeUnit(time.Microsecond)
	Milliseconds = TimeUnit(time.Millisecond)
	Seconds      = TimeUnit(time.Second)
	Minutes      = TimeUnit(time.Minute)
)

// String returns the short suffix: ns, us, ms, s, min.
func (u TimeUnit) String() string {
	switch u {
	case Nanoseconds:
		return "ns"
	case Microseconds:
		return "us"
	case Milliseconds:
		return "ms"
	case Seconds:
		return "s"
	case Minutes:
		return "min"
	}

	return time.Duration(u).String()
}

// Nanos returns the number of nanoseconds in one unit.
func (u TimeUnit) Nanos() float64 {
	return float64(time.Duration(u).Nanoseconds())
}

// ParseTimeUnit accepts ns, us, ms, s, m or min.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ns", "nanoseconds":
		return Nanoseconds, nil
	case "us", "µs", "microseconds":
		return Microseconds, nil
	case "ms", "milliseconds":
		return Milliseconds, nil
	case "s", "sec", "seconds":
		return Seconds, nil
	case "m", "min", "minutes":
		return Minutes, nil
	}

	return 0, fmt.Errorf("unknown time unit %q", s)
}

// ParseDuration accepts Go durations ("10s", "250ms") and bare integers,
// which are read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative duration %q", s)
		}

		return time.Duration(n) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}

	return d, nil
}
