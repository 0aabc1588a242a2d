package infra

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Control is the block shared by all workers of one iteration. Flags the hot
// loop reads are padded onto their own cache lines so that writes to the
// counters never invalidate the line a worker is polling.
type Control struct {
	_      cpu.CacheLinePad
	isDone atomic.Bool
	_      cpu.CacheLinePad

	warmupShouldWait   atomic.Bool
	_                  cpu.CacheLinePad
	warmdownShouldWait atomic.Bool
	_                  cpu.CacheLinePad

	warmupVisited   atomic.Int32
	warmdownVisited atomic.Int32
	_               cpu.CacheLinePad

	failing atomic.Bool
	_       cpu.CacheLinePad

	teardownPending atomic.Int32
	teardownOnce    sync.Once
	teardownReady   chan struct{}

	Benchmark BenchmarkParams
	Iteration IterationParams
	// Index is the 1-based iteration number within the phase.
	Index   int
	Warmup  bool
	Threads int
	// FirstIteration and LastIteration gate trial-level hooks.
	FirstIteration bool
	LastIteration  bool
	// Sync enables the warm-up and warm-down catch-up barriers.
	Sync bool
}

// NewControl returns a control block for one iteration run by threads
// workers.
func NewControl(
	bp BenchmarkParams,
	ip IterationParams,
	threads int,
	warmup bool,
) *Control {
	c := &Control{
		Benchmark:     bp,
		Iteration:     ip,
		Warmup:        warmup,
		Threads:       threads,
		Sync:          bp.SyncIterations,
		teardownReady: make(chan struct{}),
	}
	c.warmupShouldWait.Store(c.Sync)
	c.warmdownShouldWait.Store(c.Sync)
	c.teardownPending.Store(int32(threads))

	return c
}

// IsDone reports whether the measurement window has closed.
func (c *Control) IsDone() bool { return c.isDone.Load() }

// Done closes the measurement window.
func (c *Control) Done() { c.isDone.Store(true) }

// WarmupShouldWait reports whether some sibling has not yet finished its
// peeled invocation.
func (c *Control) WarmupShouldWait() bool { return c.warmupShouldWait.Load() }

// WarmdownShouldWait reports whether some sibling is still measuring.
func (c *Control) WarmdownShouldWait() bool { return c.warmdownShouldWait.Load() }

// AnnounceWarmupReady records that the calling worker finished its peeled
// invocation. The last worker to arrive opens the measurement window for all.
func (c *Control) AnnounceWarmupReady() {
	if int(c.warmupVisited.Add(1)) >= c.Threads {
		c.warmupShouldWait.Store(false)
	}
}

// AnnounceWarmdownReady records that the calling worker left its counted
// loop.
func (c *Control) AnnounceWarmdownReady() {
	if int(c.warmdownVisited.Add(1)) >= c.Threads {
		c.warmdownShouldWait.Store(false)
	}
}

// Fail marks the iteration as failing and releases every barrier so that
// healthy siblings drain instead of spinning forever.
func (c *Control) Fail() {
	c.failing.Store(true)
	c.warmupShouldWait.Store(false)
	c.warmdownShouldWait.Store(false)
	c.isDone.Store(true)
	c.teardownOnce.Do(func() { close(c.teardownReady) })
}

// Failing reports whether any worker has failed.
func (c *Control) Failing() bool { return c.failing.Load() }

// PreTearDown blocks until every worker has finished measuring, so that
// iteration-level teardown of shared state never races a sibling's last
// operation. It reports false if the iteration is failing.
func (c *Control) PreTearDown() bool {
	if c.teardownPending.Add(-1) <= 0 {
		c.teardownOnce.Do(func() { close(c.teardownReady) })
	}
	<-c.teardownReady

	return !c.Failing()
}
