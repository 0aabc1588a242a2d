package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiihann/hotloop/harness"
)

func newBuildCmd(a *app) *cobra.Command {
	var (
		outDir  string
		goFlags []string
	)

	cmd := &cobra.Command{
		Use:   "build [package-dir]",
		Short: "Compile a benchmark binary",
		Long: `Compile the main package in package-dir (default ".") with the go tool.
The binary runs its own benchmarks; pass it to --exec to fork it from
another binary.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srcDir := "."
			if len(args) == 1 {
				srcDir = args[0]
			}
			if outDir == "" {
				outDir = os.TempDir()
			}

			bin, err := harness.Build(cmd.Context(), a.logger, srcDir, outDir, goFlags)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, bin)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&outDir, "out", "o", "",
		"Directory for the binary (default: system temp dir)")
	flags.StringArrayVar(&goFlags, "go-flag", nil,
		"Flag passed to go build, e.g. --go-flag=-gcflags=-N")

	return cmd
}
