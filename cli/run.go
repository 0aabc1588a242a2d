package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/weiihann/hotloop/options"
	"github.com/weiihann/hotloop/report"
	"github.com/weiihann/hotloop/runner"
	"github.com/weiihann/hotloop/telemetry"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		configPath string
		pin        bool
	)

	cmd := &cobra.Command{
		Use:   "run [regexp...]",
		Short: "Run benchmarks",
		Long: `Run the benchmarks whose names match any of the regular expressions,
or every benchmark when none is given. Command line flags override the
config file and HOTLOOP_* environment, which override each benchmark's
own defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdline, err := optionsFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			cmdline.Includes = args

			parent, err := options.Load(configPath)
			if err != nil {
				return err
			}

			return a.run(cmd.Context(), cmdline.WithParent(parent), pin)
		},
	}

	flags := cmd.Flags()
	addOptionFlags(flags)
	flags.StringVarP(&configPath, "config", "c", "",
		"Config file (yaml, json or toml)")
	flags.BoolVar(&pin, "pin", false,
		"Pin worker threads to CPUs where supported")

	return cmd
}

func (a *app) run(ctx context.Context, o options.Options, pin bool) error {
	verbosity := o.Verbosity.OrElse(telemetry.VerbosityNormal)
	if err := a.setupLogger(verbosity); err != nil {
		return err
	}
	logger := a.logger

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	if addr, ok := o.MetricsAddr.Get(); ok && addr != "" {
		if _, err := telemetry.Serve(ctx, addr, reg, logger); err != nil {
			return fmt.Errorf("serve metrics: %w", err)
		}
	}

	r := runner.New(a.reg, o, logger)
	r.Metrics = metrics
	r.PinThreads = pin
	if verbosity != telemetry.VerbositySilent {
		progress := report.NewProgress(a.stdout)
		progress.Extra = verbosity == telemetry.VerbosityExtra
		r.Listener = progress
	}

	out, runErr := r.Run(ctx)
	if out == nil {
		return runErr
	}

	if err := a.summarize(o, out, logger); err != nil {
		if runErr != nil {
			logger.Error("could not write results", slog.String("error", err.Error()))

			return runErr
		}

		return err
	}

	if runErr != nil {
		return runErr
	}
	if n := len(out.Failures); n > 0 {
		return fmt.Errorf("%d of %d benchmarks failed", n, n+len(out.Results))
	}

	return nil
}

// summarize prints the result table and writes the result file.
func (a *app) summarize(o options.Options, out *runner.Outcome, logger *slog.Logger) error {
	for _, f := range out.Failures {
		logger.Warn("benchmark had errors",
			slog.String("benchmark", f.Benchmark),
			slog.String("error", f.Err.Error()),
		)
	}
	if len(out.Results) == 0 {
		return nil
	}

	records, err := report.NewRecords(out.Results)
	if err != nil {
		return fmt.Errorf("summarize results: %w", err)
	}

	if err := report.Generate(a.stdout, records); err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	format := o.ResultFormat.OrElse(options.DefaultResultFormat)
	path, ok := o.ResultFile.Get()
	if !ok {
		if !o.ResultFormat.IsSet() {
			return nil
		}
		path = "hotloop-result." + extension(format)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	if err := report.Write(f, format, records); err != nil {
		f.Close()

		return fmt.Errorf("write %s results: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close result file: %w", err)
	}

	logger.Info("results written",
		slog.String("path", path),
		slog.String("format", format),
		slog.String("run", out.RunID),
	)

	return nil
}

func extension(format string) string {
	switch format {
	case report.FormatText:
		return "md"
	case report.FormatGoBench:
		return "txt"
	}

	return format
}
