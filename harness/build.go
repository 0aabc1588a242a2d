package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/weiihann/hotloop/options"
)

// CommandConfig holds the resolved command, its arguments, and environment
// variables needed to run a forked benchmark process.
type CommandConfig struct {
	Binary  string
	Prepend []string
	Args    []string
	Append  []string
	// Env is appended to the inherited environment.
	Env []string
}

// WrapCommand returns the exec configuration of a fork. The binary defaults
// to self, the running executable.
func WrapCommand(self string, o options.Options) CommandConfig {
	return CommandConfig{
		Binary:  o.Exec.OrElse(self),
		Prepend: o.ExecArgsPrepend.OrElse(nil),
		Args:    o.ExecArgs.OrElse(nil),
		Append:  o.ExecArgsAppend.OrElse(nil),
		Env:     o.Env.OrElse(nil),
	}
}

// ResolveBinary returns where Build puts the binary of the benchmark
// package in srcDir.
func ResolveBinary(outDir, srcDir string) string {
	name := filepath.Base(filepath.Clean(srcDir))
	if name == "." || name == string(filepath.Separator) {
		name = "bench"
	}

	return filepath.Join(outDir, name+"-hotloop")
}

// Build compiles the benchmark main package in srcDir with the go tool and
// returns the binary path.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	srcDir string,
	outDir string,
	flags []string,
) (string, error) {
	binPath := ResolveBinary(outDir, srcDir)
	if !filepath.IsAbs(binPath) {
		abs, err := filepath.Abs(binPath)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", binPath, err)
		}
		binPath = abs
	}

	logger.InfoContext(ctx, "building benchmarks",
		slog.String("source_dir", srcDir),
		slog.String("flags", strings.Join(flags, " ")),
	)

	args := append([]string{"build", "-o", binPath}, flags...)
	args = append(args, ".")
	cmd := exec.CommandContext(ctx, "go", args...)
	cmd.Dir = srcDir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", srcDir, err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build %s: binary not found at %s", srcDir, binPath,
		)
	}

	logger.InfoContext(ctx, "benchmarks built",
		slog.String("binary", binPath),
	)

	return binPath, nil
}
