package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weiihann/hotloop/profile"
	"github.com/weiihann/hotloop/report"
	"github.com/weiihann/hotloop/telemetry"
)

func newListCmd(a *app) *cobra.Command {
	var excludes []string

	cmd := &cobra.Command{
		Use:   "list [regexp...]",
		Short: "List the benchmarks a run would select",
		RunE: func(_ *cobra.Command, args []string) error {
			benches, err := a.reg.Select(args, excludes)
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, "Benchmarks:")
			for _, b := range benches {
				fmt.Fprintln(a.stdout, b.Name)
				if a.verbosity != telemetry.VerbosityExtra {
					continue
				}
				if b.IsGroup() {
					fmt.Fprintf(a.stdout, "  methods: %s\n", strings.Join(b.MethodNames(), ", "))
				}
				for _, p := range b.Params {
					fmt.Fprintf(a.stdout, "  param %s (%s): %s\n", p.Name, p.Kind, strings.Join(p.Values, ", "))
				}
			}

			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&excludes, "exclude", "e", nil,
		"Regexp of benchmarks to leave out")

	return cmd
}

func newProfilersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profilers",
		Short: "List the available profilers",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintln(a.stdout, "| Profiler | Aliases | Kind | Description |")
			fmt.Fprintln(a.stdout, "|----------|---------|------|-------------|")

			for _, d := range profile.List() {
				kind := "internal"
				if d.External {
					kind = "external"
				}
				aliases := strings.Join(d.Aliases, ", ")
				if aliases == "" {
					aliases = "-"
				}
				fmt.Fprintf(a.stdout, "| %s | %s | %s | %s |\n", d.Name, aliases, kind, d.Description)
			}

			return nil
		},
	}
}

func newFormatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the result file formats",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, f := range report.Formats() {
				fmt.Fprintln(a.stdout, f)
			}

			return nil
		},
	}
}
