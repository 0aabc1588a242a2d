package loop

import (
	"errors"
	"fmt"
)

// ErrAffinityUnavailable is returned when the host cannot pin workers to
// CPUs. The executor logs it once and keeps running unpinned.
var ErrAffinityUnavailable = errors.New("cpu affinity control unavailable")

// Phase is the part of the iteration a failure happened in.
type Phase string

const (
	PhaseBind     Phase = "bind"
	PhaseSetup    Phase = "setup"
	PhaseBody     Phase = "body"
	PhaseTearDown Phase = "teardown"
)

// ExecutionError is a failure of the benchmark body or one of its hooks on a
// worker.
type ExecutionError struct {
	Benchmark string
	Method    string
	Thread    int
	Phase     Phase
	Err       error
}

func (e *ExecutionError) Error() string {
	method := ""
	if e.Method != "" {
		method = "/" + e.Method
	}

	return fmt.Sprintf("%s%s: thread %d failed in %s: %v",
		e.Benchmark, method, e.Thread, e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
