//go:build unix

package harness

import (
	"os"
	"runtime"
	"syscall"
)

func peakRSS(ps *os.ProcessState) uint64 {
	ru, ok := ps.SysUsage().(*syscall.Rusage)
	if !ok || ru.Maxrss <= 0 {
		return 0
	}

	// Darwin reports bytes, everything else kilobytes.
	if runtime.GOOS == "darwin" || runtime.GOOS == "ios" {
		return uint64(ru.Maxrss)
	}

	return uint64(ru.Maxrss) * 1024
}
