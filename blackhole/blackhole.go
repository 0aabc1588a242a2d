// Package blackhole consumes values produced by benchmark bodies so that the
// compiler cannot prove the computation producing them is dead.
//
// Every primitive Consume method compares the value against two bait fields
// that hold different random values. The branch that writes the value into
// the sink can never be taken, but the compiler cannot prove that, so the
// value has to be materialised. References are written into the sink on a
// masked schedule, which keeps the sink from being optimised away even if the
// method gets inlined into the measured loop.
package blackhole

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// Blackhole is a per-thread sink. It must not be shared between workers.
type Blackhole struct {
	_ cpu.CacheLinePad

	b1, b2   bool
	by1, by2 byte
	i1, i2   int32
	l1, l2   int64
	u1, u2   uint64
	f1, f2   float32
	d1, d2   float64

	_ cpu.CacheLinePad

	tlr     uint64
	tlrMask uint64
	refs    [2]unsafe.Pointer
	objs    [2]any

	_ cpu.CacheLinePad

	sink atomic.Uint64

	_ cpu.CacheLinePad
}

// New returns a blackhole with freshly randomised bait.
func New() *Blackhole {
	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	bh := &Blackhole{}

	bh.b1 = r.IntN(2) == 0
	bh.b2 = !bh.b1
	bh.by1 = byte(r.Uint32())
	bh.by2 = bh.by1 + 1
	bh.i1 = int32(r.Uint32())
	bh.i2 = bh.i1 + 1
	bh.l1 = int64(r.Uint64())
	bh.l2 = bh.l1 + 1
	bh.u1 = r.Uint64()
	bh.u2 = bh.u1 + 1
	bh.f1 = float32(r.Int32())
	bh.f2 = math.Nextafter32(bh.f1, float32(math.Inf(1)))
	bh.d1 = float64(r.Int64())
	bh.d2 = math.Nextafter(bh.d1, math.Inf(1))
	bh.tlr = r.Uint64() | 1
	bh.tlrMask = 1

	return bh
}

// ConsumeBool sinks a bool.
func (bh *Blackhole) ConsumeBool(v bool) {
	if v == bh.b1 && v == bh.b2 {
		bh.sink.Store(1)
	}
}

// ConsumeByte sinks a byte.
func (bh *Blackhole) ConsumeByte(v byte) {
	if v == bh.by1 && v == bh.by2 {
		bh.sink.Store(uint64(v))
	}
}

// ConsumeUint8 sinks a uint8.
func (bh *Blackhole) ConsumeUint8(v uint8) { bh.ConsumeByte(v) }

// ConsumeInt8 sinks an int8.
func (bh *Blackhole) ConsumeInt8(v int8) {
	b := byte(v)
	if b == bh.by1 && b == bh.by2 {
		bh.sink.Store(uint64(b))
	}
}

// ConsumeInt16 sinks an int16.
func (bh *Blackhole) ConsumeInt16(v int16) {
	i := int32(v)
	if i == bh.i1 && i == bh.i2 {
		bh.sink.Store(uint64(i))
	}
}

// ConsumeUint16 sinks a uint16.
func (bh *Blackhole) ConsumeUint16(v uint16) {
	i := int32(v)
	if i == bh.i1 && i == bh.i2 {
		bh.sink.Store(uint64(i))
	}
}

// ConsumeInt32 sinks an int32.
func (bh *Blackhole) ConsumeInt32(v int32) {
	if v == bh.i1 && v == bh.i2 {
		bh.sink.Store(uint64(v))
	}
}

// ConsumeRune sinks a rune.
func (bh *Blackhole) ConsumeRune(v rune) { bh.ConsumeInt32(v) }

// ConsumeUint32 sinks a uint32.
func (bh *Blackhole) ConsumeUint32(v uint32) {
	u := uint64(v)
	if u == bh.u1 && u == bh.u2 {
		bh.sink.Store(u)
	}
}

// ConsumeInt64 sinks an int64.
func (bh *Blackhole) ConsumeInt64(v int64) {
	if v == bh.l1 && v == bh.l2 {
		bh.sink.Store(uint64(v))
	}
}

// ConsumeInt sinks an int.
func (bh *Blackhole) ConsumeInt(v int) { bh.ConsumeInt64(int64(v)) }

// ConsumeUint64 sinks a uint64.
func (bh *Blackhole) ConsumeUint64(v uint64) {
	if v == bh.u1 && v == bh.u2 {
		bh.sink.Store(v)
	}
}

// ConsumeUint sinks a uint.
func (bh *Blackhole) ConsumeUint(v uint) { bh.ConsumeUint64(uint64(v)) }

// ConsumeUintptr sinks a uintptr.
func (bh *Blackhole) ConsumeUintptr(v uintptr) { bh.ConsumeUint64(uint64(v)) }

// ConsumeFloat32 sinks a float32.
func (bh *Blackhole) ConsumeFloat32(v float32) {
	if v == bh.f1 && v == bh.f2 {
		bh.sink.Store(uint64(math.Float32bits(v)))
	}
}

// ConsumeFloat64 sinks a float64.
func (bh *Blackhole) ConsumeFloat64(v float64) {
	if v == bh.d1 && v == bh.d2 {
		bh.sink.Store(math.Float64bits(v))
	}
}

// ConsumeComplex128 sinks a complex128.
func (bh *Blackhole) ConsumeComplex128(v complex128) {
	bh.ConsumeFloat64(real(v))
	bh.ConsumeFloat64(imag(v))
}

// ConsumeString sinks a string. Both the header and the backing array are
// kept reachable.
func (bh *Blackhole) ConsumeString(v string) {
	bh.ConsumeInt(len(v))
	bh.consumePtr(unsafe.Pointer(unsafe.StringData(v)))
}

// ConsumeBytes sinks a byte slice.
func (bh *Blackhole) ConsumeBytes(v []byte) {
	bh.ConsumeInt(len(v))
	bh.consumePtr(unsafe.Pointer(unsafe.SliceData(v)))
}

// ConsumeInts sinks an int slice.
func (bh *Blackhole) ConsumeInts(v []int) {
	bh.ConsumeInt(len(v))
	bh.consumePtr(unsafe.Pointer(unsafe.SliceData(v)))
}

// ConsumeFloat64s sinks a float64 slice.
func (bh *Blackhole) ConsumeFloat64s(v []float64) {
	bh.ConsumeInt(len(v))
	bh.consumePtr(unsafe.Pointer(unsafe.SliceData(v)))
}

// Consume sinks an arbitrary value. Boxing a non-pointer value allocates;
// prefer the typed methods for scalars.
func (bh *Blackhole) Consume(v any) {
	tlrMask := bh.tlrMask
	tlr := bh.tlr*6364136223846793005 + 1442695040888963407
	bh.tlr = tlr
	if tlr&tlrMask == 0 {
		// v must not have its address taken, or it moves to the heap on
		// every call.
		bh.objs[tlr&1] = v
		bh.tlrMask = (tlrMask << 1) | 1
	}
}

func (bh *Blackhole) consumePtr(p unsafe.Pointer) {
	tlrMask := bh.tlrMask
	tlr := bh.tlr*6364136223846793005 + 1442695040888963407
	bh.tlr = tlr
	if tlr&tlrMask == 0 {
		bh.refs[tlr&1] = p
		bh.tlrMask = (tlrMask << 1) | 1
	}
}

// Evaporate drops every reference held by the sink. Workers call it at the
// end of each iteration so consumed objects do not outlive the iteration.
func (bh *Blackhole) Evaporate() {
	bh.refs[0] = nil
	bh.refs[1] = nil
	bh.objs[0] = nil
	bh.objs[1] = nil
	bh.tlrMask = 1
}
