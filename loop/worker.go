package loop

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

// Sample time mode aims for this many samples per millisecond of iteration
// time before it starts thinning the buffer.
const samplesPerMilli = 20

// worker runs the timing loop of one thread for one iteration.
type worker struct {
	ctl *infra.Control
	pos infra.ThreadParams
	b   *binding
	seq uint64

	pause       time.Duration
	allOps      int64
	measuredOps int64
}

type workerOutput struct {
	primary     results.Result
	allOps      int64
	measuredOps int64
}

func (w *worker) fail(phase Phase, err error) error {
	w.ctl.Fail()

	return &ExecutionError{
		Benchmark: w.ctl.Benchmark.Benchmark,
		Method:    w.b.method,
		Thread:    w.pos.ThreadIndex,
		Phase:     phase,
		Err:       err,
	}
}

func (w *worker) run() (workerOutput, error) {
	ctl := w.ctl

	for _, in := range w.b.states {
		if err := in.setupTrial(); err != nil {
			return workerOutput{}, w.fail(PhaseSetup, fmt.Errorf("state %s: %w", in.spec.Name, err))
		}
	}
	for _, in := range w.b.states {
		if err := in.setupIteration(w.seq); err != nil {
			return workerOutput{}, w.fail(PhaseSetup, fmt.Errorf("state %s: %w", in.spec.Name, err))
		}
	}

	var (
		primary results.Result
		err     error
	)
	if ctl.Benchmark.Mode == infra.SingleShotTime {
		primary, err = w.singleShot()
	} else {
		primary, err = w.timed()
	}
	if err != nil {
		return workerOutput{}, w.fail(PhaseBody, err)
	}

	if !ctl.PreTearDown() {
		// A sibling failed; its error is the one reported.
		return workerOutput{}, nil
	}

	for _, in := range w.b.states {
		if err := in.tearDownIteration(w.seq); err != nil {
			return workerOutput{}, w.fail(PhaseTearDown, fmt.Errorf("state %s: %w", in.spec.Name, err))
		}
	}
	if ctl.LastIteration {
		for i := len(w.b.states) - 1; i >= 0; i-- {
			in := w.b.states[i]
			if err := in.tearDownTrial(); err != nil {
				return workerOutput{}, w.fail(PhaseTearDown, fmt.Errorf("state %s: %w", in.spec.Name, err))
			}
		}
	}

	opi := int64(max(ctl.Benchmark.OpsPerInvocation, 1))

	return workerOutput{
		primary:     primary,
		allOps:      w.allOps * opi,
		measuredOps: w.measuredOps * opi,
	}, nil
}

// invoke calls the body once, running invocation-level hooks around it and
// charging their cost to pause time.
func (w *worker) invoke() error {
	if len(w.b.invocation) == 0 {
		return w.b.op(w.b.bh)
	}

	t0 := time.Now()
	for _, in := range w.b.invocation {
		if err := in.invocation(true); err != nil {
			return fmt.Errorf("invocation setup of %s: %w", in.spec.Name, err)
		}
	}
	t1 := time.Now()
	err := w.b.op(w.b.bh)
	t2 := time.Now()
	for i := len(w.b.invocation) - 1; i >= 0; i-- {
		in := w.b.invocation[i]
		if terr := in.invocation(false); terr != nil && err == nil {
			err = fmt.Errorf("invocation teardown of %s: %w", in.spec.Name, terr)
		}
	}
	w.pause += t1.Sub(t0) + time.Since(t2)

	return err
}

// warmup runs the peeled invocation and then keeps the worker busy, uncounted,
// until every sibling has done the same.
func (w *worker) warmup() error {
	ctl := w.ctl

	if err := w.invoke(); err != nil {
		return err
	}
	w.allOps++
	ctl.AnnounceWarmupReady()

	for ctl.WarmupShouldWait() {
		if err := w.invoke(); err != nil {
			return err
		}
		w.allOps++
	}

	return nil
}

// warmdown keeps the worker busy, uncounted, until every sibling has left its
// counted loop.
func (w *worker) warmdown() error {
	ctl := w.ctl
	ctl.AnnounceWarmdownReady()

	for ctl.WarmdownShouldWait() {
		if err := w.invoke(); err != nil {
			return err
		}
		w.allOps++
	}

	return nil
}

func (w *worker) timed() (results.Result, error) {
	if err := w.warmup(); err != nil {
		return results.Result{}, err
	}

	bp := w.ctl.Benchmark
	var (
		r   results.Result
		err error
	)
	switch bp.Mode {
	case infra.Throughput, infra.AverageTime:
		var (
			ops     int64
			elapsed time.Duration
		)
		ops, elapsed, err = w.counted()
		opi := int64(max(bp.OpsPerInvocation, 1))
		if bp.Mode == infra.Throughput {
			r = results.NewThroughput(results.Primary, bp.Benchmark, ops*opi, elapsed, bp.TimeUnit)
		} else {
			r = results.NewAverageTime(results.Primary, bp.Benchmark, ops*opi, elapsed, bp.TimeUnit)
		}
	case infra.SampleTime:
		var buf *results.SampleBuffer
		buf, err = w.sampled()
		r = results.NewSampleTime(results.Primary, bp.Benchmark, buf, bp.TimeUnit)
	default:
		return results.Result{}, fmt.Errorf("mode %s has no timed loop", bp.Mode)
	}
	if err != nil {
		return results.Result{}, err
	}

	if err := w.warmdown(); err != nil {
		return results.Result{}, err
	}

	return r, nil
}

// counted is the throughput and average time loop: one timestamp on each side
// of the loop, nothing but the done flag inside it.
func (w *worker) counted() (int64, time.Duration, error) {
	ctl := w.ctl
	op, bh := w.b.op, w.b.bh
	w.pause = 0

	var ops int64
	var err error
	start := time.Now()
	if len(w.b.invocation) == 0 {
		for !ctl.IsDone() {
			if err = op(bh); err != nil {
				break
			}
			ops++
		}
	} else {
		for !ctl.IsDone() {
			if err = w.invoke(); err != nil {
				break
			}
			ops++
		}
	}
	elapsed := time.Since(start) - w.pause

	w.measuredOps += ops
	w.allOps += ops

	return ops, elapsed, err
}

// sampled is the sample time loop. Each batch is timed with probability
// 1/(mask+1); whenever the buffer fills up it is halved and the probability
// halves with it, so overhead stays bounded while the samples stay spread
// over the whole iteration.
func (w *worker) sampled() (*results.SampleBuffer, error) {
	ctl := w.ctl
	bp := ctl.Benchmark
	batch := max(ctl.Iteration.BatchSize, 1)
	perSample := int64(batch) * int64(max(bp.OpsPerInvocation, 1))
	target := max(int(ctl.Iteration.Time.Milliseconds())*samplesPerMilli, 1)

	buf := results.NewSampleBuffer(target)
	rnd := rand.Uint32()
	var mask uint32
	var ops int64

	for !ctl.IsDone() {
		rnd = rnd*1664525 + 1013904223
		if rnd&mask == 0 {
			pause := w.pause
			start := time.Now()
			for range batch {
				if err := w.invoke(); err != nil {
					return buf, err
				}
			}
			ns := time.Since(start) - (w.pause - pause)
			buf.Add(ns.Nanoseconds() / perSample)

			if buf.Len() >= target {
				buf.HalfDecimate()
				mask = mask<<1 + 1
			}
		} else {
			for range batch {
				if err := w.invoke(); err != nil {
					return buf, err
				}
			}
		}
		ops += int64(batch)
	}

	w.measuredOps += ops
	w.allOps += ops

	return buf, nil
}

// singleShot times one batch of calls from a cold start. Workers start
// together but there is no peeled invocation.
func (w *worker) singleShot() (results.Result, error) {
	ctl := w.ctl
	bp := ctl.Benchmark
	batch := max(ctl.Iteration.BatchSize, 1)

	ctl.AnnounceWarmupReady()
	for ctl.WarmupShouldWait() {
		// spin
	}

	w.pause = 0
	start := time.Now()
	for range batch {
		if err := w.invoke(); err != nil {
			return results.Result{}, err
		}
	}
	elapsed := time.Since(start) - w.pause
	w.measuredOps += int64(batch)
	w.allOps += int64(batch)

	ctl.AnnounceWarmdownReady()

	opi := int64(max(bp.OpsPerInvocation, 1))

	return results.NewSingleShot(results.Primary, bp.Benchmark, elapsed, int64(batch)*opi, bp.TimeUnit), nil
}
