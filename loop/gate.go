package loop

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

const spinsBeforeYield = 1 << 10

// gate is a compare-and-set spin lock guarding the hooks of a shared state
// object. It never parks the goroutine; after a bounded spin it yields the
// processor and retries.
type gate struct {
	_    cpu.CacheLinePad
	held atomic.Bool
	_    cpu.CacheLinePad
}

func (g *gate) lock() {
	spins := 0
	for !g.held.CompareAndSwap(false, true) {
		spins++
		if spins == spinsBeforeYield {
			runtime.Gosched()
			spins = 0
		}
	}
}

func (g *gate) unlock() {
	g.held.Store(false)
}
