package results

// SampleBuffer is an append-only buffer of raw nanosecond samples owned by
// one worker for one iteration.
type SampleBuffer struct {
	samples []int64
}

// NewSampleBuffer returns a buffer with room for capacity samples.
func NewSampleBuffer(capacity int) *SampleBuffer {
	return &SampleBuffer{samples: make([]int64, 0, capacity)}
}

// Add appends one sample.
func (b *SampleBuffer) Add(ns int64) {
	b.samples = append(b.samples, ns)
}

// AddAll appends every sample of other.
func (b *SampleBuffer) AddAll(other *SampleBuffer) {
	b.samples = append(b.samples, other.samples...)
}

// Len returns the number of samples.
func (b *SampleBuffer) Len() int { return len(b.samples) }

// Samples exposes the backing slice; callers must not modify it.
func (b *SampleBuffer) Samples() []int64 { return b.samples }

// HalfDecimate keeps every second sample. The timing loop calls it when the
// buffer is full and halves its sampling rate at the same time, which keeps
// the retained samples uniformly spread over the iteration.
func (b *SampleBuffer) HalfDecimate() {
	n := 0
	for i := 0; i < len(b.samples); i += 2 {
		b.samples[n] = b.samples[i]
		n++
	}
	b.samples = b.samples[:n]
}
