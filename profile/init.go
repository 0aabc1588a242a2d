package profile

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidConfig is the sentinel behind ConfigError.
var ErrInvalidConfig = errors.New("invalid profiler options")

// ConfigError reports a malformed or conflicting profiler option.
type ConfigError struct {
	Profiler string
	Key      string
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("profiler %s: %s", e.Profiler, e.Reason)
	}

	return fmt.Sprintf("profiler %s: option %q %s", e.Profiler, e.Key, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// InitOptions are the parsed key=value pairs of an initialisation string.
type InitOptions struct {
	profiler string
	values   map[string]string
}

// ParseInit parses "key=value;key=value". A bare key means "true". Keys not
// in allowed, repeated keys, and empty keys are errors.
func ParseInit(profiler, init string, allowed ...string) (InitOptions, error) {
	o := InitOptions{profiler: profiler, values: make(map[string]string)}

	for _, part := range strings.Split(init, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok {
			value = "true"
		}
		if key == "" {
			return InitOptions{}, &ConfigError{Profiler: profiler, Reason: fmt.Sprintf("malformed option %q", part)}
		}
		if !slices.Contains(allowed, key) {
			return InitOptions{}, &ConfigError{
				Profiler: profiler,
				Key:      key,
				Reason:   fmt.Sprintf("is not recognised; supported options are %s", strings.Join(allowed, ", ")),
			}
		}
		if _, dup := o.values[key]; dup {
			return InitOptions{}, &ConfigError{Profiler: profiler, Key: key, Reason: "is given more than once"}
		}
		o.values[key] = strings.TrimSpace(value)
	}

	return o, nil
}

// Has reports whether key was given.
func (o InitOptions) Has(key string) bool {
	_, ok := o.values[key]

	return ok
}

// String returns key's value or def.
func (o InitOptions) String(key, def string) string {
	if v, ok := o.values[key]; ok {
		return v
	}

	return def
}

// Bool returns key's value as a bool.
func (o InitOptions) Bool(key string, def bool) (bool, error) {
	v, ok := o.values[key]
	if !ok {
		return def, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigError{Profiler: o.profiler, Key: key, Reason: fmt.Sprintf("wants a boolean, got %q", v)}
	}

	return b, nil
}

// Int returns key's value as a positive int.
func (o InitOptions) Int(key string, def int) (int, error) {
	v, ok := o.values[key]
	if !ok {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, &ConfigError{Profiler: o.profiler, Key: key, Reason: fmt.Sprintf("wants a positive integer, got %q", v)}
	}

	return n, nil
}

// Duration returns key's value as a duration. Bare integers are
// milliseconds.
func (o InitOptions) Duration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o.values[key]
	if !ok {
		return def, nil
	}

	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, &ConfigError{Profiler: o.profiler, Key: key, Reason: fmt.Sprintf("wants a duration, got %q", v)}
	}

	return d, nil
}

// Exclusive fails if more than one of keys was given.
func (o InitOptions) Exclusive(keys ...string) error {
	var given []string
	for _, k := range keys {
		if o.Has(k) {
			given = append(given, k)
		}
	}
	if len(given) > 1 {
		return &ConfigError{
			Profiler: o.profiler,
			Reason:   fmt.Sprintf("options %s are mutually exclusive", strings.Join(given, " and ")),
		}
	}

	return nil
}
