package blackhole

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// costPerCall returns the best-of-rounds nanoseconds per call of fn, where fn
// performs n calls.
func costPerCall(n int, rounds int, fn func(n int)) float64 {
	best := time.Duration(1<<63 - 1)
	for r := 0; r < rounds; r++ {
		start := time.Now()
		fn(n)
		if d := time.Since(start); d < best {
			best = d
		}
	}

	return float64(best) / float64(n)
}

func TestConsumeCPULinear(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	tokens := []int64{10, 1000, 100000}
	perToken := make([]float64, len(tokens))

	for i, tk := range tokens {
		reps := int(1_000_000 / tk)
		if reps < 20 {
			reps = 20
		}
		cost := costPerCall(reps, 7, func(n int) {
			for j := 0; j < n; j++ {
				ConsumeCPU(tk)
			}
		})
		perToken[i] = cost / float64(tk)
	}

	// Call overhead dominates at 10 tokens, so the bound is generous: the
	// per-token cost must stay within a small constant factor.
	largest := perToken[len(perToken)-1]
	for i, pt := range perToken {
		assert.Greater(t, pt, 0.0, "tokens=%d", tokens[i])
		ratio := pt / largest
		assert.Less(t, ratio, 8.0, "tokens=%d per-token=%.3fns", tokens[i], pt)
		assert.Greater(t, ratio, 0.25, "tokens=%d per-token=%.3fns", tokens[i], pt)
	}
}

func TestConsumeNotCoalesced(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	bh := New()
	const n = 200_000

	run := func(k int) float64 {
		return costPerCall(n, 7, func(n int) {
			for i := 0; i < n; i++ {
				switch k {
				case 1:
					bh.ConsumeInt(i)
				case 4:
					bh.ConsumeInt(i)
					bh.ConsumeInt(i + 1)
					bh.ConsumeInt(i + 2)
					bh.ConsumeInt(i + 3)
				case 8:
					bh.ConsumeInt(i)
					bh.ConsumeInt(i + 1)
					bh.ConsumeInt(i + 2)
					bh.ConsumeInt(i + 3)
					bh.ConsumeInt(i + 4)
					bh.ConsumeInt(i + 5)
					bh.ConsumeInt(i + 6)
					bh.ConsumeInt(i + 7)
				}
			}
		})
	}

	one := run(1)
	four := run(4)
	eight := run(8)

	// Merged calls would make the cost flat in k.
	assert.Greater(t, four, one*1.3, "1=%.2fns 4=%.2fns", one, four)
	assert.Greater(t, eight, four*1.3, "4=%.2fns 8=%.2fns", four, eight)
	assert.Less(t, eight, one*8*4, "1=%.2fns 8=%.2fns", one, eight)
}

func TestBaitNeverMatches(t *testing.T) {
	for i := 0; i < 100; i++ {
		bh := New()
		require.NotEqual(t, bh.b1, bh.b2)
		require.NotEqual(t, bh.i1, bh.i2)
		require.NotEqual(t, bh.l1, bh.l2)
		require.NotEqual(t, bh.f1, bh.f2)
		require.NotEqual(t, bh.d1, bh.d2)

		bh.ConsumeInt64(bh.l1)
		bh.ConsumeInt64(bh.l2)
		bh.ConsumeFloat32(bh.f1)
		bh.ConsumeFloat32(bh.f2)
		bh.ConsumeFloat64(bh.d1)
		bh.ConsumeFloat64(bh.d2)
		bh.ConsumeBool(true)
		bh.ConsumeBool(false)
		assert.Zero(t, bh.sink.Load())
	}
}

func TestEvaporateDropsReferences(t *testing.T) {
	bh := New()
	buf := make([]byte, 16)
	for i := 0; i < 1024; i++ {
		bh.ConsumeBytes(buf)
		bh.Consume(&buf)
	}

	bh.Evaporate()

	assert.Nil(t, bh.refs[0])
	assert.Nil(t, bh.refs[1])
	assert.Nil(t, bh.objs[0])
	assert.Nil(t, bh.objs[1])
	assert.Equal(t, uint64(1), bh.tlrMask)
}

func TestConsumePointerDoesNotAllocate(t *testing.T) {
	type payload struct{ a, b int64 }

	bh := New()
	p := &payload{a: 1, b: 2}
	buf := make([]byte, 64)

	allocs := testing.AllocsPerRun(10_000, func() {
		bh.Consume(p)
		bh.ConsumeBytes(buf)
		bh.ConsumeInt(len(buf))
	})
	assert.Zero(t, allocs)
}
