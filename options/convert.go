package options

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weiihann/hotloop/infra"
)

// ErrInvalidOption is the sentinel behind every ConversionError.
var ErrInvalidOption = errors.New("invalid option")

// ConversionError reports a malformed option value.
type ConversionError struct {
	Option string
	Value  string
	Reason string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("option %s: %q %s", e.Option, e.Value, e.Reason)
}

func (e *ConversionError) Unwrap() error { return ErrInvalidOption }

func convErr(option, value, reason string) error {
	return &ConversionError{Option: option, Value: value, Reason: reason}
}

// ParsePositiveInt accepts integers > 0.
func ParsePositiveInt(option, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, convErr(option, s, "is not an integer")
	}
	if n <= 0 {
		return 0, convErr(option, s, "must be positive")
	}

	return n, nil
}

// ParseNonNegativeInt accepts integers >= 0.
func ParseNonNegativeInt(option, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, convErr(option, s, "is not an integer")
	}
	if n < 0 {
		return 0, convErr(option, s, "must not be negative")
	}

	return n, nil
}

// ParseThreads accepts a positive integer or "max".
func ParseThreads(option, s string) (int, error) {
	if strings.EqualFold(strings.TrimSpace(s), "max") {
		return MaxThreads, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, convErr(option, s, `is neither an integer nor "max"`)
	}
	if n <= 0 {
		return 0, convErr(option, s, "must be positive")
	}

	return n, nil
}

// ParseBool accepts the strconv forms plus on/off and yes/no.
func ParseBool(option, s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}

	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, convErr(option, s, "is not a boolean")
	}

	return b, nil
}

// ParseTime accepts Go durations and bare seconds.
func ParseTime(option, s string) (time.Duration, error) {
	d, err := infra.ParseDuration(s)
	if err != nil {
		return 0, convErr(option, s, "is not a time value")
	}

	return d, nil
}

// ParsePositiveTime is ParseTime that rejects zero.
func ParsePositiveTime(option, s string) (time.Duration, error) {
	d, err := ParseTime(option, s)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, convErr(option, s, "must be positive")
	}

	return d, nil
}

// ParseIntList parses "1,3" into positive integers.
func ParseIntList(option, s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		n, err := ParsePositiveInt(option, part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, convErr(option, s, "is empty")
	}

	return out, nil
}

// ParseParam parses "name=v1,v2".
func ParseParam(option, s string) (string, []string, error) {
	name, values, ok := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, convErr(option, s, "must have the form name=value[,value...]")
	}

	var out []string
	for _, v := range strings.Split(values, ",") {
		out = append(out, strings.TrimSpace(v))
	}

	return name, out, nil
}

// ParseProfiler parses "name" or "name:key=value;key=value".
func ParseProfiler(option, s string) (ProfilerConfig, error) {
	name, init, _ := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return ProfilerConfig{}, convErr(option, s, "names no profiler")
	}

	return ProfilerConfig{Name: name, Init: init}, nil
}

// ParseEnv checks "KEY=VALUE".
func ParseEnv(option, s string) (string, error) {
	key, _, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return "", convErr(option, s, "must have the form KEY=VALUE")
	}

	return s, nil
}
