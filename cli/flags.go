package cli

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/options"
	"github.com/weiihann/hotloop/report"
	"github.com/weiihann/hotloop/telemetry"
)

// optionFlag is a command line flag that sets one field of the command line
// options layer. Flags the user did not pass leave their field unset, so
// lower layers still apply.
type optionFlag struct {
	name  string
	short string
	usage string
	// repeat flags may be given several times; apply runs once per value.
	repeat bool
	// boolean flags may be given without a value.
	boolean bool
	apply   func(o *options.Options, option, value string) error
}

func set[T any](
	conv func(option, value string) (T, error),
	assign func(o *options.Options, v T),
) func(*options.Options, string, string) error {
	return func(o *options.Options, option, value string) error {
		v, err := conv(option, value)
		if err != nil {
			return err
		}
		assign(o, v)

		return nil
	}
}

func str(_, value string) (string, error) { return value, nil }

func modes(option, value string) ([]infra.Mode, error) {
	ms, err := infra.ParseModes(value)
	if err != nil {
		return nil, &options.ConversionError{Option: option, Value: value, Reason: err.Error()}
	}

	return ms, nil
}

func timeUnit(option, value string) (infra.TimeUnit, error) {
	u, err := infra.ParseTimeUnit(value)
	if err != nil {
		return 0, &options.ConversionError{Option: option, Value: value, Reason: "is not a time unit"}
	}

	return u, nil
}

func resultFormat(option, value string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(value))
	if !slices.Contains(report.Formats(), f) {
		return "", fmt.Errorf("%s: unknown result format %q, want one of %s",
			option, value, strings.Join(report.Formats(), ", "))
	}

	return f, nil
}

func verbosity(option, value string) (string, error) {
	if _, err := telemetry.ParseVerbosity(value); err != nil {
		return "", fmt.Errorf("%s: %w", option, err)
	}

	return value, nil
}

var optionFlags = []optionFlag{
	{name: "iterations", short: "i", usage: "Measurement iterations",
		apply: set(options.ParsePositiveInt, func(o *options.Options, v int) { o.Iterations = options.Some(v) })},
	{name: "time", short: "r", usage: "Time of each measurement iteration, e.g. 10s",
		apply: set(options.ParsePositiveTime, func(o *options.Options, v time.Duration) { o.Time = options.Some(v) })},
	{name: "batch-size", usage: "Calls per operation in sample and single-shot modes",
		apply: set(options.ParsePositiveInt, func(o *options.Options, v int) { o.BatchSize = options.Some(v) })},
	{name: "warmup-iterations", usage: "Warm-up iterations",
		apply: set(options.ParseNonNegativeInt, func(o *options.Options, v int) { o.WarmupIterations = options.Some(v) })},
	{name: "warmup-time", short: "w", usage: "Time of each warm-up iteration",
		apply: set(options.ParsePositiveTime, func(o *options.Options, v time.Duration) { o.WarmupTime = options.Some(v) })},
	{name: "warmup-batch-size", usage: "Calls per operation during warm-up",
		apply: set(options.ParsePositiveInt, func(o *options.Options, v int) { o.WarmupBatchSize = options.Some(v) })},
	{name: "forks", short: "f", usage: "Measured forks per benchmark, 0 runs in this process",
		apply: set(options.ParseNonNegativeInt, func(o *options.Options, v int) { o.Forks = options.Some(v) })},
	{name: "warmup-forks", usage: "Forks whose results are discarded",
		apply: set(options.ParseNonNegativeInt, func(o *options.Options, v int) { o.WarmupForks = options.Some(v) })},
	{name: "threads", short: "t", usage: `Worker threads, or "max" for one per CPU`,
		apply: set(options.ParseThreads, func(o *options.Options, v int) { o.Threads = options.Some(v) })},
	{name: "warmup-threads", usage: "Worker threads during warm-up",
		apply: set(options.ParseThreads, func(o *options.Options, v int) { o.WarmupThreads = options.Some(v) })},
	{name: "thread-groups", usage: "Thread ratio of the methods of a group benchmark, e.g. 1,3",
		apply: set(options.ParseIntList, func(o *options.Options, v []int) { o.ThreadGroups = options.Some(v) })},
	{name: "rewarm-on-thread-change", boolean: true, usage: "Warm up again when measurement uses other thread counts",
		apply: set(options.ParseBool, func(o *options.Options, v bool) { o.RewarmOnThreadChange = options.Some(v) })},
	{name: "sync-iterations", boolean: true, usage: "Keep workers busy until every worker has started and stopped measuring",
		apply: set(options.ParseBool, func(o *options.Options, v bool) { o.SyncIterations = options.Some(v) })},
	{name: "modes", short: "m", usage: "Benchmark modes: thrpt, avgt, sample, ss or all",
		apply: set(modes, func(o *options.Options, v []infra.Mode) { o.Modes = options.Some(v) })},
	{name: "time-unit", short: "u", usage: "Output time unit: ns, us, ms, s or m",
		apply: set(timeUnit, func(o *options.Options, v infra.TimeUnit) { o.TimeUnit = options.Some(v) })},
	{name: "ops-per-invocation", usage: "Operations each call of the benchmark body counts for",
		apply: set(options.ParsePositiveInt, func(o *options.Options, v int) { o.OpsPerInvocation = options.Some(v) })},
	{name: "param", short: "p", repeat: true, usage: "Override parameter values, name=v1,v2",
		apply: func(o *options.Options, option, value string) error {
			name, values, err := options.ParseParam(option, value)
			if err != nil {
				return err
			}
			if o.Params == nil {
				o.Params = make(map[string][]string)
			}
			o.Params[name] = values

			return nil
		}},
	{name: "prof", repeat: true, usage: "Profiler to run, name[:init]",
		apply: set(options.ParseProfiler, func(o *options.Options, v options.ProfilerConfig) {
			o.Profilers = append(o.Profilers, v)
		})},
	{name: "exclude", short: "e", repeat: true, usage: "Regexp of benchmarks to leave out",
		apply: set(str, func(o *options.Options, v string) { o.Excludes = append(o.Excludes, v) })},
	{name: "exec", usage: "Binary forks run instead of this one",
		apply: set(str, func(o *options.Options, v string) { o.Exec = options.Some(v) })},
	{name: "exec-args", repeat: true, usage: "Arguments passed to forks",
		apply: set(str, func(o *options.Options, v string) { o.ExecArgs = appendOpt(o.ExecArgs, v) })},
	{name: "exec-args-prepend", repeat: true, usage: "Command words put before the fork binary",
		apply: set(str, func(o *options.Options, v string) { o.ExecArgsPrepend = appendOpt(o.ExecArgsPrepend, v) })},
	{name: "exec-args-append", repeat: true, usage: "Arguments put after every other fork argument",
		apply: set(str, func(o *options.Options, v string) { o.ExecArgsAppend = appendOpt(o.ExecArgsAppend, v) })},
	{name: "env", repeat: true, usage: "Environment variable for forks, KEY=VALUE",
		apply: set(options.ParseEnv, func(o *options.Options, v string) { o.Env = appendOpt(o.Env, v) })},
	{name: "timeout", usage: "Time after which a stuck iteration is reported",
		apply: set(options.ParsePositiveTime, func(o *options.Options, v time.Duration) { o.Timeout = options.Some(v) })},
	{name: "fail-on-error", boolean: true, usage: "Stop the run at the first failing benchmark",
		apply: set(options.ParseBool, func(o *options.Options, v bool) { o.FailOnError = options.Some(v) })},
	{name: "result", short: "o", usage: "File to write results to",
		apply: set(str, func(o *options.Options, v string) { o.ResultFile = options.Some(v) })},
	{name: "result-format", usage: "Result file format: " + strings.Join(report.Formats(), ", "),
		apply: set(resultFormat, func(o *options.Options, v string) { o.ResultFormat = options.Some(v) })},
	{name: "metrics-addr", usage: "Serve harness metrics at this address, e.g. :9090",
		apply: set(str, func(o *options.Options, v string) { o.MetricsAddr = options.Some(v) })},
}

func appendOpt(o options.Optional[[]string], v string) options.Optional[[]string] {
	cur, _ := o.Get()

	return options.Some(append(cur, v))
}

func addOptionFlags(fs *pflag.FlagSet) {
	for _, f := range optionFlags {
		if f.repeat {
			fs.StringArrayP(f.name, f.short, nil, f.usage)

			continue
		}
		fs.StringP(f.name, f.short, "", f.usage)
		if f.boolean {
			fs.Lookup(f.name).NoOptDefVal = "true"
		}
	}
}

// optionsFromFlags builds the command line options layer from the flags
// that were set.
func optionsFromFlags(fs *pflag.FlagSet) (options.Options, error) {
	var o options.Options

	for _, f := range optionFlags {
		if !fs.Changed(f.name) {
			continue
		}

		var values []string
		if f.repeat {
			vs, err := fs.GetStringArray(f.name)
			if err != nil {
				return options.Options{}, err
			}
			values = vs
		} else {
			v, err := fs.GetString(f.name)
			if err != nil {
				return options.Options{}, err
			}
			values = []string{v}
		}

		for _, v := range values {
			if err := f.apply(&o, f.name, v); err != nil {
				return options.Options{}, err
			}
		}
	}

	if fs.Changed("verbose") {
		v, err := fs.GetString("verbose")
		if err != nil {
			return options.Options{}, err
		}
		if _, err := verbosity("verbose", v); err != nil {
			return options.Options{}, err
		}
		o.Verbosity = options.Some(v)
	}

	return o, nil
}
