//go:build linux

package loop

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinCPU binds the calling OS thread to one CPU chosen by worker index. The
// caller must hold runtime.LockOSThread.
func pinCPU(index int) error {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_getaffinity: %w: %w", err, ErrAffinityUnavailable)
	}

	allowed := make([]int, 0, runtime.NumCPU())
	for c := 0; c < 1024 && len(allowed) < set.Count(); c++ {
		if set.IsSet(c) {
			allowed = append(allowed, c)
		}
	}
	if len(allowed) == 0 {
		return fmt.Errorf("empty affinity mask: %w", ErrAffinityUnavailable)
	}

	var one unix.CPUSet
	one.Set(allowed[index%len(allowed)])
	if err := unix.SchedSetaffinity(0, &one); err != nil {
		return fmt.Errorf("sched_setaffinity: %w: %w", err, ErrAffinityUnavailable)
	}

	return nil
}
