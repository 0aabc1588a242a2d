package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

const perfStatName = "perfstat"

var perfTemplates = map[string][]string{
	"default": {"cycles", "instructions", "branches", "branch-misses", "task-clock"},
	"cache":   {"L1-dcache-loads", "L1-dcache-load-misses", "LLC-loads", "LLC-load-misses"},
	"branch":  {"branches", "branch-misses"},
}

// perfStatProfiler runs the forked benchmark under `perf stat` and reports
// the counters, raw and per operation. The counters cover the whole fork,
// warm-up included, so they are normalised by every operation it ran.
type perfStatProfiler struct {
	bin    string
	events []string
	delay  time.Duration
	logger *slog.Logger

	outPath string
}

func newPerfStat(init string, logger *slog.Logger) (Profiler, error) {
	o, err := ParseInit(perfStatName, init, "events", "template", "delay")
	if err != nil {
		return nil, err
	}
	if err := o.Exclusive("events", "template"); err != nil {
		return nil, err
	}

	events := perfTemplates["default"]
	if o.Has("template") {
		t := o.String("template", "")
		tmpl, ok := perfTemplates[t]
		if !ok {
			return nil, &ConfigError{Profiler: perfStatName, Key: "template", Reason: fmt.Sprintf("has no template named %q", t)}
		}
		events = tmpl
	}
	if o.Has("events") {
		events = nil
		for _, e := range strings.Split(o.String("events", ""), ",") {
			if e = strings.TrimSpace(e); e != "" {
				events = append(events, e)
			}
		}
		if len(events) == 0 {
			return nil, &ConfigError{Profiler: perfStatName, Key: "events", Reason: "lists no events"}
		}
	}

	delay, err := o.Duration("delay", 0)
	if err != nil {
		return nil, err
	}

	bin, err := exec.LookPath("perf")
	if err != nil {
		return nil, fmt.Errorf("perf not found in PATH: %w", ErrProfilerUnavailable)
	}

	return &perfStatProfiler{bin: bin, events: events, delay: delay, logger: logger}, nil
}

func (p *perfStatProfiler) Name() string { return perfStatName }

func (p *perfStatProfiler) Description() string {
	return "Hardware counters from `perf stat` wrapped around the fork, normalised per operation"
}

func (p *perfStatProfiler) BeforeTrial(infra.BenchmarkParams) error {
	f, err := os.CreateTemp("", "hotloop-perfstat-*.csv")
	if err != nil {
		return fmt.Errorf("create perf output: %w", err)
	}
	p.outPath = f.Name()

	return f.Close()
}

func (p *perfStatProfiler) Prefix(infra.BenchmarkParams) []string {
	args := []string{p.bin, "stat", "-x,", "-o", p.outPath, "-e", strings.Join(p.events, ",")}
	if p.delay > 0 {
		args = append(args, "--delay", strconv.FormatInt(p.delay.Milliseconds(), 10))
	}

	return append(args, "--")
}

func (p *perfStatProfiler) Args(infra.BenchmarkParams) []string { return nil }

func (p *perfStatProfiler) AfterTrial(_ infra.BenchmarkParams, out TrialOutput) ([]results.Result, error) {
	defer os.Remove(p.outPath)

	f, err := os.Open(p.outPath)
	if err != nil {
		return nil, fmt.Errorf("open perf output: %w", err)
	}
	defer f.Close()

	counters, err := parsePerfStat(f)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, errors.New("perf stat produced no counters")
	}

	return perfResults(counters, out.AllOps), nil
}

type perfCounter struct {
	event string
	value float64
	unit  string
}

// parsePerfStat reads `perf stat -x,` output. Comment lines and counters perf
// could not read are skipped.
func parsePerfStat(r io.Reader) ([]perfCounter, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	var out []perfCounter
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse perf output: %w", err)
		}
		if len(rec) < 3 {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			// <not counted>, <not supported>
			continue
		}
		out = append(out, perfCounter{
			event: strings.TrimSpace(rec[2]),
			value: v,
			unit:  strings.TrimSpace(rec[1]),
		})
	}

	return out, nil
}

func perfResults(counters []perfCounter, allOps int64) []results.Result {
	var out []results.Result
	byEvent := make(map[string]float64, len(counters))

	for _, c := range counters {
		byEvent[c.event] = c.value
		unit := c.unit
		if unit == "" {
			unit = "#"
		}
		label := perfStatName + "." + c.event
		out = append(out, results.NewScalar(results.Secondary, label, c.value, unit, results.Sum))
		if allOps > 0 {
			out = append(out, results.NewScalar(results.Secondary, label+".norm",
				c.value/float64(allOps), unit+"/op", results.Avg))
		}
	}

	cycles, okC := byEvent["cycles"]
	insns, okI := byEvent["instructions"]
	if okC && okI && cycles > 0 {
		out = append(out, results.NewScalar(results.Secondary, perfStatName+".ipc", insns/cycles, "insns/clk", results.Avg))
	}

	return out
}

var _ External = (*perfStatProfiler)(nil)
