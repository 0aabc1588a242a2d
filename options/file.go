package options

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/weiihann/hotloop/infra"
)

// EnvPrefix prefixes the environment variables read by Load, e.g.
// HOTLOOP_WARMUP_ITERATIONS.
const EnvPrefix = "HOTLOOP"

// Load reads the parent configuration layer: an optional config file (any
// format viper understands, selected by extension), the HOTLOOP_*
// environment, and a .env file in the working directory if present.
func Load(path string) (Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Options{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return fromViper(v)
}

type layerReader struct {
	v   *viper.Viper
	err error
}

func (r *layerReader) str(key string) (string, bool) {
	if r.err != nil || !r.v.IsSet(key) {
		return "", false
	}

	return r.v.GetString(key), true
}

func (r *layerReader) intOpt(key string, conv func(string, string) (int, error)) Optional[int] {
	s, ok := r.str(key)
	if !ok {
		return None[int]()
	}
	n, err := conv(key, s)
	if err != nil {
		r.err = err

		return None[int]()
	}

	return Some(n)
}

func (r *layerReader) boolOpt(key string) Optional[bool] {
	s, ok := r.str(key)
	if !ok {
		return None[bool]()
	}
	b, err := ParseBool(key, s)
	if err != nil {
		r.err = err

		return None[bool]()
	}

	return Some(b)
}

func (r *layerReader) timeOpt(key string) Optional[time.Duration] {
	s, ok := r.str(key)
	if !ok {
		return None[time.Duration]()
	}
	d, err := ParseTime(key, s)
	if err != nil {
		r.err = err

		return None[time.Duration]()
	}

	return Some(d)
}

func (r *layerReader) strOpt(key string) Optional[string] {
	s, ok := r.str(key)
	if !ok {
		return None[string]()
	}

	return Some(s)
}

// list returns the key as a list. YAML lists are taken as is; scalar
// strings are split on commas.
func (r *layerReader) list(key string, splitCommas bool) ([]string, bool) {
	if r.err != nil || !r.v.IsSet(key) {
		return nil, false
	}

	var out []string
	for _, item := range r.v.GetStringSlice(key) {
		if !splitCommas {
			out = append(out, item)

			continue
		}
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out, true
}

func (r *layerReader) listOpt(key string, splitCommas bool) Optional[[]string] {
	l, ok := r.list(key, splitCommas)
	if !ok {
		return None[[]string]()
	}

	return Some(l)
}

func fromViper(v *viper.Viper) (Options, error) {
	r := &layerReader{v: v}

	o := Options{
		Iterations:       r.intOpt("iterations", ParsePositiveInt),
		BatchSize:        r.intOpt("batch-size", ParsePositiveInt),
		WarmupIterations: r.intOpt("warmup-iterations", ParseNonNegativeInt),
		WarmupBatchSize:  r.intOpt("warmup-batch-size", ParsePositiveInt),
		Forks:            r.intOpt("forks", ParseNonNegativeInt),
		WarmupForks:      r.intOpt("warmup-forks", ParseNonNegativeInt),
		Threads:          r.intOpt("threads", ParseThreads),
		WarmupThreads:    r.intOpt("warmup-threads", ParseThreads),
		OpsPerInvocation: r.intOpt("ops-per-invocation", ParsePositiveInt),

		Time:       r.timeOpt("time"),
		WarmupTime: r.timeOpt("warmup-time"),
		Timeout:    r.timeOpt("timeout"),

		RewarmOnThreadChange: r.boolOpt("rewarm-on-thread-change"),
		SyncIterations:       r.boolOpt("sync-iterations"),
		FailOnError:          r.boolOpt("fail-on-error"),

		Exec:            r.strOpt("exec"),
		ExecArgs:        r.listOpt("exec-args", false),
		ExecArgsPrepend: r.listOpt("exec-args-prepend", false),
		ExecArgsAppend:  r.listOpt("exec-args-append", false),
		Env:             r.listOpt("env", false),

		ResultFile:   r.strOpt("result"),
		ResultFormat: r.strOpt("result-format"),
		Verbosity:    r.strOpt("verbosity"),
		MetricsAddr:  r.strOpt("metrics-addr"),
	}

	o.Includes, _ = r.list("include", true)
	o.Excludes, _ = r.list("exclude", true)

	if raw, ok := r.list("thread-groups", true); ok {
		groups, err := ParseIntList("thread-groups", strings.Join(raw, ","))
		if err != nil {
			return Options{}, err
		}
		o.ThreadGroups = Some(groups)
	}

	if modes, ok := r.list("modes", true); ok {
		parsed, err := infra.ParseModes(strings.Join(modes, ","))
		if err != nil {
			return Options{}, &ConversionError{Option: "modes", Value: strings.Join(modes, ","), Reason: err.Error()}
		}
		o.Modes = Some(parsed)
	}

	if s, ok := r.str("time-unit"); ok {
		u, err := infra.ParseTimeUnit(s)
		if err != nil {
			return Options{}, &ConversionError{Option: "time-unit", Value: s, Reason: "is not a time unit"}
		}
		o.TimeUnit = Some(u)
	}

	if profs, ok := r.list("profilers", false); ok {
		for _, p := range profs {
			cfg, err := ParseProfiler("profilers", p)
			if err != nil {
				return Options{}, err
			}
			o.Profilers = append(o.Profilers, cfg)
		}
	}

	if v.IsSet("params") {
		o.Params = make(map[string][]string)
		for name, raw := range v.GetStringMap("params") {
			o.Params[name] = paramValues(raw)
		}
	}

	if r.err != nil {
		return Options{}, r.err
	}

	return o, nil
}

func paramValues(raw any) []string {
	switch vs := raw.(type) {
	case []any:
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = fmt.Sprint(v)
		}

		return out
	case string:
		var out []string
		for _, p := range strings.Split(vs, ",") {
			out = append(out, strings.TrimSpace(p))
		}

		return out
	default:
		return []string{fmt.Sprint(vs)}
	}
}
