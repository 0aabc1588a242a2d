// Package results models benchmark measurements and the laws for combining
// them across threads, iterations and forks.
package results

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/stats"
)

// Kind selects the aggregation law of a Result.
type Kind int

const (
	KindThroughput Kind = iota + 1
	KindAverageTime
	KindSampleTime
	KindSingleShot
	KindScalar
	KindScalarDerivative
	KindText
)

var kindNames = map[Kind]string{
	KindThroughput:       "throughput",
	KindAverageTime:      "average-time",
	KindSampleTime:       "sample-time",
	KindSingleShot:       "single-shot",
	KindScalar:           "scalar",
	KindScalarDerivative: "scalar-derivative",
	KindText:             "text",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}

	return 0, fmt.Errorf("unknown result kind %q", s)
}

// Role is the place a Result takes in a report.
type Role int

const (
	Primary Role = iota + 1
	Secondary
	SecondaryDerivative
)

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	case SecondaryDerivative:
		return "secondary-derivative"
	}

	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole is the inverse of Role.String.
func ParseRole(s string) (Role, error) {
	for _, r := range []Role{Primary, Secondary, SecondaryDerivative} {
		if r.String() == s {
			return r, nil
		}
	}

	return 0, fmt.Errorf("unknown result role %q", s)
}

// Policy is how the score is derived from the backing statistics.
type Policy int

const (
	Avg Policy = iota + 1
	Sum
	Max
)

func (p Policy) String() string {
	switch p {
	case Avg:
		return "avg"
	case Sum:
		return "sum"
	case Max:
		return "max"
	}

	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy is the inverse of Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "avg":
		return Avg, nil
	case "sum":
		return Sum, nil
	case "max":
		return Max, nil
	}

	return 0, fmt.Errorf("unknown aggregation policy %q", s)
}

// ScoreConfidence is the confidence level of reported score errors.
const ScoreConfidence = 0.999

// Result is one measurement. Its score is a pure function of Stats and
// Policy. Results are values; aggregation always builds new ones.
type Result struct {
	Kind   Kind
	Role   Role
	Label  string
	Unit   string
	Policy Policy
	// Stats is *stats.List for every kind except AverageTime, which uses
	// *stats.Weighted. It is nil for Text.
	Stats stats.Statistics
	Text  string

	// bounds overrides the parametric interval, used for bootstrapped
	// derivatives.
	bounds *stats.Interval
}

// Score applies the policy to the backing statistics.
func (r Result) Score() float64 {
	if r.Kind == KindText || r.Stats == nil || r.Stats.N() == 0 {
		return math.NaN()
	}

	switch r.Policy {
	case Sum:
		return r.Stats.Sum()
	case Max:
		return r.Stats.Max()
	default:
		return r.Stats.Mean()
	}
}

// SampleCount is the number of observations behind the score.
func (r Result) SampleCount() int64 {
	if r.Stats == nil {
		return 0
	}

	return r.Stats.N()
}

// ScoreError is the half-width of the score's confidence interval, NaN when
// there is not enough data or the policy has no error estimate.
func (r Result) ScoreError() float64 {
	ci := r.ScoreInterval()
	if !ci.Valid() {
		return math.NaN()
	}

	return (ci.Upper - ci.Lower) / 2
}

// ScoreInterval is the confidence interval of the score.
func (r Result) ScoreInterval() stats.Interval {
	if r.bounds != nil {
		return *r.bounds
	}
	if r.Stats == nil || r.Policy != Avg {
		return stats.Invalid()
	}

	return r.Stats.ConfidenceIntervalAt(ScoreConfidence)
}

// WithInterval returns a copy of r whose score interval is ci.
func (r Result) WithInterval(ci stats.Interval) Result {
	r.bounds = &ci

	return r
}

// HasInterval reports whether the interval was set explicitly.
func (r Result) HasInterval() bool { return r.bounds != nil }

// WithLabel returns a copy of r with a different label and role.
func (r Result) WithLabel(role Role, label string) Result {
	r.Role = role
	r.Label = label

	return r
}

func (r Result) String() string {
	if r.Kind == KindText {
		return r.Label + ": " + r.Text
	}

	return fmt.Sprintf("%s: %.3f %s", r.Label, r.Score(), r.Unit)
}

// ThroughputUnit is the unit of throughput results in u.
func ThroughputUnit(u infra.TimeUnit) string { return "ops/" + u.String() }

// TimeUnitPerOp is the unit of time-per-operation results in u.
func TimeUnitPerOp(u infra.TimeUnit) string { return u.String() + "/op" }

// NewThroughput returns ops per unit of time over elapsed.
func NewThroughput(
	role Role,
	label string,
	ops int64,
	elapsed time.Duration,
	unit infra.TimeUnit,
) Result {
	l := stats.NewList()
	if elapsed > 0 {
		l.Add(float64(ops) * unit.Nanos() / float64(elapsed.Nanoseconds()))
	}

	return Result{
		Kind:   KindThroughput,
		Role:   role,
		Label:  label,
		Unit:   ThroughputUnit(unit),
		Policy: Avg,
		Stats:  l,
	}
}

// NewAverageTime returns the time per operation over elapsed. The operation
// count is kept as the weight so that combining results divides total time
// by total operations.
func NewAverageTime(
	role Role,
	label string,
	ops int64,
	elapsed time.Duration,
	unit infra.TimeUnit,
) Result {
	w := stats.NewWeighted()
	if ops > 0 {
		perOp := float64(elapsed.Nanoseconds()) / float64(ops) / unit.Nanos()
		w.AddValue(perOp, float64(ops))
	}

	return Result{
		Kind:   KindAverageTime,
		Role:   role,
		Label:  label,
		Unit:   TimeUnitPerOp(unit),
		Policy: Avg,
		Stats:  w,
	}
}

// NewSampleTime converts the raw nanosecond samples of buf into unit.
func NewSampleTime(
	role Role,
	label string,
	buf *SampleBuffer,
	unit infra.TimeUnit,
) Result {
	l := stats.NewList()
	div := unit.Nanos()
	for _, ns := range buf.Samples() {
		l.Add(float64(ns) / div)
	}

	return Result{
		Kind:   KindSampleTime,
		Role:   role,
		Label:  label,
		Unit:   TimeUnitPerOp(unit),
		Policy: Avg,
		Stats:  l,
	}
}

// NewSingleShot returns the time per operation of one cold batch.
func NewSingleShot(
	role Role,
	label string,
	elapsed time.Duration,
	ops int64,
	unit infra.TimeUnit,
) Result {
	l := stats.NewList()
	if ops > 0 {
		l.Add(float64(elapsed.Nanoseconds()) / float64(ops) / unit.Nanos())
	}

	return Result{
		Kind:   KindSingleShot,
		Role:   role,
		Label:  label,
		Unit:   TimeUnitPerOp(unit),
		Policy: Avg,
		Stats:  l,
	}
}

// NewScalar returns a single profiler-style measurement.
func NewScalar(role Role, label string, value float64, unit string, policy Policy) Result {
	return Result{
		Kind:   KindScalar,
		Role:   role,
		Label:  label,
		Unit:   unit,
		Policy: policy,
		Stats:  stats.NewList(value),
	}
}

// NewText returns a free-form secondary result.
func NewText(label, text string) Result {
	return Result{
		Kind:   KindText,
		Role:   Secondary,
		Label:  label,
		Unit:   "---",
		Policy: Avg,
		Text:   text,
	}
}
