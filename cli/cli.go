// Package cli is the command line of a benchmark binary. A binary registers
// its benchmarks and hands the registry to Main.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/runner"
	"github.com/weiihann/hotloop/telemetry"
)

// Main runs the command line and exits. When the process is a fork started
// by a parent run, it executes the planned trial instead.
func Main(reg *bench.Registry) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	handled, err := runner.ForkedMain(ctx, reg)
	if handled {
		stop()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	root := NewRootCmd(reg, os.Stdout, os.Stderr)
	err = root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type app struct {
	reg    *bench.Registry
	stdout io.Writer
	stderr io.Writer

	verbosity string
	jsonLogs  bool
	logger    *slog.Logger
}

// NewRootCmd builds the command tree for the benchmarks in reg.
func NewRootCmd(reg *bench.Registry, stdout, stderr io.Writer) *cobra.Command {
	a := &app{reg: reg, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "hotloop",
		Short: "Microbenchmark harness",
		Long: `Hotloop measures the steady-state performance of small pieces of Go code.
Each benchmark runs in fresh processes, with warm-up and measurement
iterations, and is reported with a confidence interval.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setupLogger(a.verbosity)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.verbosity, "verbose", "v", "",
		"Verbosity: silent, normal or extra")
	flags.BoolVar(&a.jsonLogs, "log-json", false,
		"Write logs as JSON")

	root.AddCommand(
		newRunCmd(a),
		newListCmd(a),
		newProfilersCmd(a),
		newFormatsCmd(a),
		newBuildCmd(a),
	)

	return root
}

func (a *app) setupLogger(verbosity string) error {
	level, err := telemetry.ParseVerbosity(verbosity)
	if err != nil {
		return err
	}
	a.logger = telemetry.NewLogger(a.stderr, level, a.jsonLogs)

	return nil
}
