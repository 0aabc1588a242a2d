package report

import (
	"github.com/weiihann/hotloop/results"
	"github.com/weiihann/hotloop/stats"
	"github.com/weiihann/hotloop/wire"
)

// Metric is one aggregated result as it is written out.
type Metric struct {
	Score      wire.Float    `json:"score" yaml:"score"`
	Error      wire.Float    `json:"score_error" yaml:"score_error"`
	Confidence [2]wire.Float `json:"score_confidence" yaml:"score_confidence"`
	Unit       string        `json:"score_unit" yaml:"score_unit"`
	Samples    int64         `json:"samples,omitempty" yaml:"samples,omitempty"`
	Text       string        `json:"text,omitempty" yaml:"text,omitempty"`
	// Raw holds the per-iteration scores of each fork. Only the primary
	// metric carries it.
	Raw [][]wire.Float `json:"raw_data,omitempty" yaml:"raw_data,omitempty"`
	// Outliers classifies the iteration scores of all forks together.
	Outliers *stats.OutlierSummary `json:"outliers,omitempty" yaml:"outliers,omitempty"`
}

// Secondary is a labelled secondary metric.
type Secondary struct {
	Label  string `json:"label" yaml:"label"`
	Metric `yaml:",inline"`
}

// Record is the summary of one benchmark written to result files.
type Record struct {
	Benchmark             string            `json:"benchmark" yaml:"benchmark"`
	Mode                  string            `json:"mode" yaml:"mode"`
	Threads               int               `json:"threads" yaml:"threads"`
	Forks                 int               `json:"forks" yaml:"forks"`
	WarmupIterations      int               `json:"warmup_iterations" yaml:"warmup_iterations"`
	WarmupTime            string            `json:"warmup_time" yaml:"warmup_time"`
	MeasurementIterations int               `json:"measurement_iterations" yaml:"measurement_iterations"`
	MeasurementTime       string            `json:"measurement_time" yaml:"measurement_time"`
	BatchSize             int               `json:"batch_size" yaml:"batch_size"`
	Params                map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	// ParamKey is the bindings in declaration order, e.g. "size=8,kind=x".
	ParamKey    string      `json:"-" yaml:"-"`
	Primary     Metric      `json:"primary_metric" yaml:"primary_metric"`
	Secondaries []Secondary `json:"secondary_metrics,omitempty" yaml:"secondary_metrics,omitempty"`
}

// NewRecord summarises rr.
func NewRecord(rr *results.RunResult) (Record, error) {
	bp := rr.Params

	primary, err := rr.Primary()
	if err != nil {
		return Record{}, err
	}
	secondaries, err := rr.Secondaries()
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Benchmark:             bp.Benchmark,
		Mode:                  bp.Mode.String(),
		Threads:               bp.Threads,
		Forks:                 bp.Forks,
		WarmupIterations:      bp.Warmup.Count,
		WarmupTime:            bp.Warmup.Time.String(),
		MeasurementIterations: bp.Measurement.Count,
		MeasurementTime:       bp.Measurement.Time.String(),
		BatchSize:             bp.Measurement.BatchSize,
		ParamKey:              bp.Params.Key(),
		Primary:               metric(primary),
	}
	if len(bp.Params) > 0 {
		rec.Params = make(map[string]string, len(bp.Params))
		for _, b := range bp.Params {
			rec.Params[b.Name] = b.Value.Raw
		}
	}

	raw, err := iterationScores(rr)
	if err != nil {
		return Record{}, err
	}
	all := stats.NewList()
	for _, fork := range raw {
		scores := make([]wire.Float, 0, len(fork))
		for _, v := range fork {
			scores = append(scores, wire.Float(v))
			all.Add(v)
		}
		rec.Primary.Raw = append(rec.Primary.Raw, scores)
	}
	o := stats.Outliers(all)
	rec.Primary.Outliers = &o

	for _, s := range secondaries {
		rec.Secondaries = append(rec.Secondaries, Secondary{Label: s.Label, Metric: metric(s)})
	}

	return rec, nil
}

// NewRecords summarises every result of a run.
func NewRecords(rrs []*results.RunResult) ([]Record, error) {
	out := make([]Record, 0, len(rrs))
	for _, rr := range rrs {
		rec, err := NewRecord(rr)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, nil
}

// iterationScores returns the primary score of every measured iteration,
// grouped by fork.
func iterationScores(rr *results.RunResult) ([][]float64, error) {
	out := make([][]float64, 0, len(rr.Trials))
	for _, t := range rr.Trials {
		scores := make([]float64, 0, len(t.Iterations))
		for _, ir := range t.Iterations {
			p, err := ir.Primary()
			if err != nil {
				return nil, err
			}
			scores = append(scores, p.Score())
		}
		out = append(out, scores)
	}

	return out, nil
}

func metric(r results.Result) Metric {
	ci := r.ScoreInterval()

	return Metric{
		Score:      wire.Float(r.Score()),
		Error:      wire.Float(r.ScoreError()),
		Confidence: [2]wire.Float{wire.Float(ci.Lower), wire.Float(ci.Upper)},
		Unit:       r.Unit,
		Samples:    r.SampleCount(),
		Text:       r.Text,
	}
}
