package profile

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"
	"slices"
	"strings"
	"time"

	"github.com/google/pprof/profile"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

const cpuName = "cpu"

const defaultCPUTop = 10

type cpuProfiler struct {
	top    int
	outDir string
	logger *slog.Logger

	buf       bytes.Buffer
	iteration int
}

func newCPU(init string, logger *slog.Logger) (Profiler, error) {
	o, err := ParseInit(cpuName, init, "top", "output")
	if err != nil {
		return nil, err
	}

	top, err := o.Int("top", defaultCPUTop)
	if err != nil {
		return nil, err
	}

	outDir := o.String("output", "")
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cpu profile dir: %w", err)
		}
	}

	return &cpuProfiler{top: top, outDir: outDir, logger: logger}, nil
}

func (p *cpuProfiler) Name() string { return cpuName }

func (p *cpuProfiler) Description() string {
	return "Sampled CPU profile of the measured iterations, top functions by flat time"
}

func (p *cpuProfiler) BeforeIteration(infra.BenchmarkParams, infra.IterationParams) error {
	p.buf.Reset()
	if err := pprof.StartCPUProfile(&p.buf); err != nil {
		return fmt.Errorf("start cpu profile: %w", err)
	}

	return nil
}

func (p *cpuProfiler) AfterIteration(
	bp infra.BenchmarkParams,
	_ infra.IterationParams,
	_ results.IterationMeta,
) ([]results.Result, error) {
	pprof.StopCPUProfile()
	p.iteration++

	raw := p.buf.Bytes()
	if p.outDir != "" {
		name := fmt.Sprintf("%s-%d.pprof", sanitizeFileName(bp.Identity()), p.iteration)
		path := filepath.Join(p.outDir, name)
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return nil, fmt.Errorf("write cpu profile: %w", err)
		}
		p.logger.Debug("cpu profile written", slog.String("path", path))
	}

	prof, err := profile.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse cpu profile: %w", err)
	}

	flat, samples, err := flatByFunction(prof)
	if err != nil {
		return nil, err
	}

	return []results.Result{
		results.NewText("cpu.top", formatTop(flat, p.top)),
		results.NewScalar(results.Secondary, "cpu.samples", float64(samples), "#", results.Sum),
	}, nil
}

type funcTime struct {
	name string
	flat time.Duration
}

// flatByFunction sums the cpu time of every sample into its leaf function.
func flatByFunction(prof *profile.Profile) ([]funcTime, int64, error) {
	idx := -1
	for i, st := range prof.SampleType {
		if st.Type == "cpu" && st.Unit == "nanoseconds" {
			idx = i
		}
	}
	if idx < 0 {
		return nil, 0, fmt.Errorf("cpu profile has no cpu/nanoseconds sample type")
	}

	byName := make(map[string]time.Duration)
	var count int64
	for _, s := range prof.Sample {
		count++
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 {
			continue
		}
		fn := s.Location[0].Line[0].Function
		if fn == nil {
			continue
		}
		byName[fn.Name] += time.Duration(s.Value[idx])
	}

	out := make([]funcTime, 0, len(byName))
	for n, d := range byName {
		out = append(out, funcTime{name: n, flat: d})
	}
	slices.SortFunc(out, func(a, b funcTime) int {
		if c := cmp.Compare(b.flat, a.flat); c != 0 {
			return c
		}

		return strings.Compare(a.name, b.name)
	})

	return out, count, nil
}

func formatTop(flat []funcTime, top int) string {
	var total time.Duration
	for _, f := range flat {
		total += f.flat
	}
	if total == 0 {
		return "cpu: no samples collected"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%10s %7s  %s\n", "flat", "flat%", "function")
	for i, f := range flat {
		if i == top {
			break
		}
		pct := 100 * float64(f.flat) / float64(total)
		fmt.Fprintf(&sb, "%10s %6.2f%%  %s\n", f.flat.Round(time.Microsecond), pct, f.name)
	}

	return strings.TrimRight(sb.String(), "\n")
}

func sanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

var _ Internal = (*cpuProfiler)(nil)
