package blackhole

import "sync/atomic"

var consumedCPU atomic.Int64

func init() {
	consumedCPU.Store(int64(42 ^ 0x5DEECE66D))
}

// ConsumeCPU burns CPU for a time proportional to tokens. The cost is linear
// in tokens, including small counts, so it can be used to model fixed-size
// units of work between operations.
func ConsumeCPU(tokens int64) {
	// The accumulator is seeded from and conditionally written back to a
	// shared atomic so the loop cannot be folded away.
	t := consumedCPU.Load()

	for i := tokens; i > 0; i-- {
		t += (t*0x5DEECE66D + 0xB + i) & 0xFFFFFFFFFFFF
	}

	if t == 42 {
		consumedCPU.Add(t)
	}
}
