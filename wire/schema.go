// Package wire is the schema a forked benchmark process and its parent
// exchange. Every message carries the schema version; a peer refuses a
// version it does not speak.
package wire

import (
	"encoding/json"
	"fmt"
	"math"
)

// Version is the schema version spoken by this build.
const Version = 1

// Paths of the link endpoints served by the parent.
const (
	PathPlan      = "/v1/plan"
	PathIteration = "/v1/iteration"
	PathFailure   = "/v1/failure"
	PathDone      = "/v1/done"
)

// Environment variables handing the link to a forked child.
const (
	EnvLink  = "HOTLOOP_LINK"
	EnvToken = "HOTLOOP_TOKEN"
)

// HeaderToken authenticates the child to its parent.
const HeaderToken = "X-Hotloop-Token"

// Plan tells a forked child what to run.
type Plan struct {
	Version   int             `json:"version"`
	RunID     string          `json:"run_id"`
	Fork      int             `json:"fork"`
	Warmup    bool            `json:"warmup_fork"`
	Benchmark BenchmarkParams `json:"benchmark"`
	// Profilers lists the internal profilers the child instantiates.
	Profilers  []Profiler `json:"profilers,omitempty"`
	PinThreads bool       `json:"pin_threads,omitempty"`
	LogLevel   string     `json:"log_level,omitempty"`
}

// Profiler names a profiler and its initialisation string.
type Profiler struct {
	Name string `json:"name"`
	Init string `json:"init,omitempty"`
}

// BenchmarkParams mirrors infra.BenchmarkParams with enums spelled out.
type BenchmarkParams struct {
	Benchmark            string          `json:"benchmark"`
	Methods              []string        `json:"methods,omitempty"`
	Mode                 string          `json:"mode"`
	Threads              int             `json:"threads"`
	ThreadGroups         []int           `json:"thread_groups,omitempty"`
	WarmupThreads        int             `json:"warmup_threads,omitempty"`
	RewarmOnThreadChange bool            `json:"rewarm_on_thread_change,omitempty"`
	SyncIterations       bool            `json:"sync_iterations"`
	Forks                int             `json:"forks"`
	WarmupForks          int             `json:"warmup_forks"`
	Warmup               IterationParams `json:"warmup"`
	Measurement          IterationParams `json:"measurement"`
	TimeUnit             string          `json:"time_unit"`
	OpsPerInvocation     int             `json:"ops_per_invocation"`
	Params               []Param         `json:"params,omitempty"`
	TimeoutNanos         int64           `json:"timeout_ns"`
}

// IterationParams mirrors infra.IterationParams.
type IterationParams struct {
	Count     int   `json:"count"`
	TimeNanos int64 `json:"time_ns"`
	BatchSize int   `json:"batch_size"`
}

// Param is one parameter binding. Value is the text it was parsed from.
type Param struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Result is one measurement. Values holds the backing observations: the raw
// values for list-backed kinds, the per-operation values for average time
// (with Weights holding the operation counts).
type Result struct {
	Kind     string    `json:"kind"`
	Role     string    `json:"role"`
	Label    string    `json:"label"`
	Unit     string    `json:"unit"`
	Policy   string    `json:"policy"`
	Values   []Float   `json:"values,omitempty"`
	Weights  []Float   `json:"weights,omitempty"`
	Text     string    `json:"text,omitempty"`
	Interval *Interval `json:"interval,omitempty"`
}

// Interval is an explicitly set confidence interval. Bounds are null when
// the interval could not be estimated.
type Interval struct {
	Lower Float `json:"lower"`
	Upper Float `json:"upper"`
}

// IterationResult is one finished iteration, sent by the child as soon as it
// completes.
type IterationResult struct {
	Version     int             `json:"version"`
	Fork        int             `json:"fork"`
	Identity    string          `json:"identity"`
	Iteration   IterationParams `json:"iteration"`
	Index       int             `json:"index"`
	Warmup      bool            `json:"warmup"`
	AllOps      int64           `json:"all_ops"`
	MeasuredOps int64           `json:"measured_ops"`
	Results     []Result        `json:"results"`
}

// Failure reports that the child's benchmark failed.
type Failure struct {
	Version  int    `json:"version"`
	Fork     int    `json:"fork"`
	Identity string `json:"identity"`
	Message  string `json:"message"`
}

// Done is the child's last message.
type Done struct {
	Version int `json:"version"`
	Fork    int `json:"fork"`
}

// Float is a float64 that encodes NaN and infinities as null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}

	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler. null decodes as NaN.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())

		return nil
	}

	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)

	return nil
}

// CheckVersion fails on a message from another schema version.
func CheckVersion(v int) error {
	if v != Version {
		return fmt.Errorf("wire schema version %d, want %d", v, Version)
	}

	return nil
}
