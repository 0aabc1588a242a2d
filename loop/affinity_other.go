//go:build !linux

package loop

import (
	"fmt"
	"runtime"
)

func pinCPU(int) error {
	return fmt.Errorf("%s: %w", runtime.GOOS, ErrAffinityUnavailable)
}
