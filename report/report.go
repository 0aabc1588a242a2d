// Package report formats benchmark results: a human summary table and the
// machine-readable result file formats.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/perf/benchfmt"
	"gopkg.in/yaml.v3"
)

// Result file formats.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatCSV     = "csv"
	FormatYAML    = "yaml"
	FormatGoBench = "gobench"
)

var generators = map[string]func(io.Writer, []Record) error{
	FormatText:    Generate,
	FormatJSON:    GenerateJSON,
	FormatCSV:     GenerateCSV,
	FormatYAML:    GenerateYAML,
	FormatGoBench: GenerateGoBench,
}

// Formats lists the supported result formats.
func Formats() []string {
	out := make([]string, 0, len(generators))
	for f := range generators {
		out = append(out, f)
	}
	sort.Strings(out)

	return out
}

// Write renders records in format.
func Write(w io.Writer, format string, records []Record) error {
	gen, ok := generators[strings.ToLower(format)]
	if !ok {
		return fmt.Errorf("unknown result format %q, want one of %s",
			format, strings.Join(Formats(), ", "))
	}

	return gen(w, records)
}

// Generate writes a markdown summary table. Secondary metrics follow their
// benchmark as "benchmark:label" rows.
func Generate(w io.Writer, records []Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Benchmark | Params | Mode | Threads | Cnt | Score | Error | Units |")
	fmt.Fprintln(w, "|-----------|--------|------|---------|-----|-------|-------|-------|")

	for _, r := range records {
		writeRow(w, r.Benchmark, r, r.Primary)
		for _, s := range r.Secondaries {
			if s.Text != "" {
				continue
			}
			writeRow(w, r.Benchmark+":"+s.Label, r, s.Metric)
		}
	}

	// Text metrics, such as profile summaries, go below the table.
	for _, r := range records {
		for _, s := range r.Secondaries {
			if s.Text == "" {
				continue
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "### %s:%s\n\n", r.Benchmark, s.Label)
			fmt.Fprintln(w, "```")
			fmt.Fprintln(w, strings.TrimRight(s.Text, "\n"))
			fmt.Fprintln(w, "```")
		}
	}

	return nil
}

func writeRow(w io.Writer, name string, r Record, m Metric) {
	params := r.ParamKey
	if params == "" {
		params = "-"
	}

	fmt.Fprintf(w, "| %s | %s | %s | %d | %s | %s | %s | %s |\n",
		name,
		params,
		r.Mode,
		r.Threads,
		count(m),
		formatScore(float64(m.Score)),
		formatError(float64(m.Error)),
		m.Unit,
	)
}

// GenerateJSON writes records as JSON to w.
func GenerateJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(records)
}

// GenerateYAML writes records as YAML to w.
func GenerateYAML(w io.Writer, records []Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return err
	}

	return enc.Close()
}

// GenerateCSV writes one row per metric, secondaries included.
func GenerateCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)

	header := []string{"Benchmark", "Mode", "Threads", "Samples", "Score", "Score Error (99.9%)", "Unit", "Params"}
	if err := cw.Write(header); err != nil {
		return err
	}

	row := func(name string, r Record, m Metric) error {
		return cw.Write([]string{
			name,
			r.Mode,
			strconv.Itoa(r.Threads),
			strconv.FormatInt(m.Samples, 10),
			strconv.FormatFloat(float64(m.Score), 'g', -1, 64),
			strconv.FormatFloat(float64(m.Error), 'g', -1, 64),
			m.Unit,
			r.ParamKey,
		})
	}

	for _, r := range records {
		if err := row(r.Benchmark, r, r.Primary); err != nil {
			return err
		}
		for _, s := range r.Secondaries {
			if s.Text != "" {
				continue
			}
			if err := row(r.Benchmark+":"+s.Label, r, s.Metric); err != nil {
				return err
			}
		}
	}
	cw.Flush()

	return cw.Error()
}

// GenerateGoBench writes records in the Go benchmark format, so the usual
// tooling such as benchstat can compare runs. Each iteration score of the
// primary metric becomes one result line.
func GenerateGoBench(w io.Writer, records []Record) error {
	bw := benchfmt.NewWriter(w)

	config := []benchfmt.Config{
		{Key: "goos", Value: []byte(runtime.GOOS), File: true},
		{Key: "goarch", Value: []byte(runtime.GOARCH), File: true},
		{Key: "harness", Value: []byte("hotloop"), File: true},
	}

	for _, r := range records {
		name := goBenchName(r)
		for _, fork := range r.Primary.Raw {
			for _, score := range fork {
				res := &benchfmt.Result{
					Config: config,
					Name:   benchfmt.Name(name),
					Iters:  1,
					Values: []benchfmt.Value{{Value: float64(score), Unit: goBenchUnit(r.Primary.Unit)}},
				}
				for _, s := range r.Secondaries {
					if s.Text != "" || math.IsNaN(float64(s.Score)) {
						continue
					}
					res.Values = append(res.Values, benchfmt.Value{
						Value: float64(s.Score),
						Unit:  goBenchUnit(s.Unit),
					})
				}
				if err := bw.Write(res); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// goBenchName renders "Name/key=value/mode=thrpt-threads".
func goBenchName(r Record) string {
	var b strings.Builder
	b.WriteString(sanitize(r.Benchmark))

	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "/%s=%s", sanitize(k), sanitize(r.Params[k]))
	}
	fmt.Fprintf(&b, "/mode=%s-%d", r.Mode, r.Threads)

	return b.String()
}

func goBenchUnit(unit string) string {
	if unit == "#" {
		return "count"
	}

	return sanitize(unit)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return '_'
		}

		return r
	}, s)
}

func count(m Metric) string {
	if m.Samples == 0 {
		return "-"
	}

	return strconv.FormatInt(m.Samples, 10)
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	abs := math.Abs(v)
	switch {
	case abs == 0:
		return "0"
	case abs >= 1000:
		return strconv.FormatFloat(v, 'f', 0, 64)
	case abs >= 1:
		return strconv.FormatFloat(v, 'f', 3, 64)
	default:
		return strconv.FormatFloat(v, 'g', 4, 64)
	}
}

func formatError(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}

	return "± " + formatScore(v)
}
