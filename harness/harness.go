package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// stderrTail is how much of a failed fork's stderr goes into the error.
const stderrTail = 4 << 10

// RunConfig holds parameters for a single fork.
type RunConfig struct {
	// OutputDir receives the fork's stdout and stderr files.
	OutputDir string
	// Prefix wraps the command, e.g. a profiling tool.
	Prefix []string
	// ExtraArgs are appended after the command's own arguments.
	ExtraArgs []string
	// Env is appended to the command environment.
	Env []string
	// Timeout kills the fork once it runs longer. Zero means no limit.
	Timeout time.Duration
}

// Runner launches forked benchmark processes.
type Runner struct {
	Name    string
	Command CommandConfig
	Logger  *slog.Logger
}

// NewRunner creates a Runner for the named benchmark.
func NewRunner(name string, command CommandConfig, logger *slog.Logger) *Runner {
	return &Runner{
		Name:    name,
		Command: command,
		Logger:  logger.With(slog.String("benchmark", name)),
	}
}

// Argv returns the full command line of a fork.
func (r *Runner) Argv(cfg RunConfig) []string {
	c := r.Command
	argv := make([]string, 0, len(cfg.Prefix)+len(c.Prepend)+1+len(c.Args)+len(cfg.ExtraArgs)+len(c.Append))
	argv = append(argv, cfg.Prefix...)
	argv = append(argv, c.Prepend...)
	argv = append(argv, c.Binary)
	argv = append(argv, c.Args...)
	argv = append(argv, cfg.ExtraArgs...)
	argv = append(argv, c.Append...)

	return argv
}

// Run executes one fork and waits for it to exit. A non-zero exit is
// returned as an error together with the result, so callers can still
// inspect the captured output.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", cfg.OutputDir, err)
	}

	stdout, err := os.CreateTemp(cfg.OutputDir, "fork-*.stdout")
	if err != nil {
		return nil, fmt.Errorf("create stdout file: %w", err)
	}
	defer stdout.Close()

	stderrPath := strings.TrimSuffix(stdout.Name(), ".stdout") + ".stderr"
	stderr, err := os.Create(stderrPath)
	if err != nil {
		return nil, fmt.Errorf("create stderr file: %w", err)
	}
	defer stderr.Close()

	argv := r.Argv(cfg)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(append(os.Environ(), r.Command.Env...), cfg.Env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.Logger.Debug("starting fork",
		slog.String("command", strings.Join(argv, " ")),
		slog.String("stdout", stdout.Name()),
	)

	wallStart := time.Now()
	runErr := cmd.Run()
	wallElapsed := time.Since(wallStart)

	result := &Result{
		StdoutPath: stdout.Name(),
		StderrPath: stderrPath,
		Elapsed:    wallElapsed,
		ExitCode:   -1,
	}
	if ps := cmd.ProcessState; ps != nil {
		result.ExitCode = ps.ExitCode()
		result.UserTime = ps.UserTime()
		result.SystemTime = ps.SystemTime()
		result.PeakMemoryBytes = peakRSS(ps)
	}

	r.Logger.Debug("fork finished",
		slog.Duration("wall_time", wallElapsed),
		slog.Int("exit_code", result.ExitCode),
	)

	if runErr != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			runErr = fmt.Errorf("%w (%w)", runErr, ctx.Err())
		}

		return result, fmt.Errorf(
			"fork of %s failed: %w\nstderr: %s",
			r.Name, runErr, tail(stderrPath, stderrTail),
		)
	}

	return result, nil
}

// Cleanup removes the files a fork left behind.
func (res *Result) Cleanup() {
	os.Remove(res.StdoutPath)
	os.Remove(res.StderrPath)
}

func tail(path string, n int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ""
	}
	if info.Size() > n {
		if _, err := f.Seek(-n, io.SeekEnd); err != nil {
			return ""
		}
	}

	b, err := io.ReadAll(f)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(b))
}

// OutputDir returns a fresh directory for the fork outputs of one run.
func OutputDir(root, runID string) string {
	if root == "" {
		root = os.TempDir()
	}

	return filepath.Join(root, "hotloop-"+runID)
}
