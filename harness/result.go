// Package harness launches forked benchmark processes and builds benchmark
// binaries.
package harness

import "time"

// Result describes one finished fork. The measurements themselves travel
// over the link; this is what the operating system saw.
type Result struct {
	ExitCode        int
	Elapsed         time.Duration
	UserTime        time.Duration
	SystemTime      time.Duration
	PeakMemoryBytes uint64
	StdoutPath      string
	StderrPath      string
}
