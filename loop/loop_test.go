package loop

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/blackhole"
	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func noop(bh *blackhole.Blackhole) error {
	bh.ConsumeInt(1)

	return nil
}

func counting(n *atomic.Int64) bench.Op {
	return func(*blackhole.Blackhole) error {
		n.Add(1)

		return nil
	}
}

func params(name string, mode infra.Mode, threads int) infra.BenchmarkParams {
	return infra.BenchmarkParams{
		Benchmark:        name,
		Mode:             mode,
		Threads:          threads,
		SyncIterations:   true,
		Measurement:      infra.IterationParams{Count: 1, Time: 30 * time.Millisecond, BatchSize: 1},
		TimeUnit:         infra.Microseconds,
		OpsPerInvocation: 1,
		Timeout:          time.Minute,
	}
}

func control(bp infra.BenchmarkParams, first, last bool) *infra.Control {
	ctl := infra.NewControl(bp, bp.Measurement, bp.Threads, false)
	ctl.Index = 1
	ctl.FirstIteration = first
	ctl.LastIteration = last

	return ctl
}

func runOnce(t *testing.T, b *bench.Benchmark, bp infra.BenchmarkParams) (*Output, error) {
	t.Helper()

	e, err := NewExecutor(b, bp, false, discard)
	require.NoError(t, err)
	defer e.Close()

	return e.RunIteration(context.Background(), control(bp, true, true))
}

// needProcs skips tests whose workers must all run at once.
func needProcs(t *testing.T, n int) {
	t.Helper()

	if procs := runtime.GOMAXPROCS(0); procs < n {
		t.Skipf("needs %d parallel workers, GOMAXPROCS is %d", n, procs)
	}
}

func TestThroughputIteration(t *testing.T) {
	needProcs(t, 2)

	b := &bench.Benchmark{Name: "noop", Methods: []bench.Method{{Op: noop}}}
	bp := params("noop", infra.Throughput, 2)

	out, err := runOnce(t, b, bp)
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	for _, r := range out.Results {
		assert.Equal(t, results.KindThroughput, r.Kind)
		assert.Equal(t, results.Primary, r.Role)
		assert.Equal(t, "noop", r.Label)
		assert.Equal(t, "ops/us", r.Unit)
		assert.Positive(t, r.Score())
	}
	assert.Positive(t, out.Meta.MeasuredOps)
	assert.Greater(t, out.Meta.AllOps, out.Meta.MeasuredOps)
	assert.GreaterOrEqual(t, out.Elapsed, bp.Measurement.Time)
}

func TestOversubscribedWorkersWarn(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	threads := runtime.GOMAXPROCS(0) + 1
	b := &bench.Benchmark{Name: "noop", Methods: []bench.Method{{Op: noop}}}
	bp := params("noop", infra.SingleShotTime, threads)

	e, err := NewExecutor(b, bp, false, logger)
	require.NoError(t, err)
	defer e.Close()

	out, err := e.RunIteration(context.Background(), control(bp, true, true))
	require.NoError(t, err)
	require.Len(t, out.Results, threads)

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "more workers than GOMAXPROCS")
}

func TestOpsPerInvocationScalesCounts(t *testing.T) {
	b := &bench.Benchmark{Name: "noop", Methods: []bench.Method{{Op: noop}}}
	bp := params("noop", infra.SingleShotTime, 1)
	bp.Measurement.BatchSize = 7
	bp.OpsPerInvocation = 10

	out, err := runOnce(t, b, bp)
	require.NoError(t, err)
	assert.Equal(t, int64(70), out.Meta.MeasuredOps)
	assert.Equal(t, int64(70), out.Meta.AllOps)
	require.Len(t, out.Results, 1)
	assert.Equal(t, results.KindSingleShot, out.Results[0].Kind)
}

func TestSampleTimeBuffersStayBounded(t *testing.T) {
	b := &bench.Benchmark{Name: "noop", Methods: []bench.Method{{Op: noop}}}
	bp := params("noop", infra.SampleTime, 1)
	bp.Measurement.Time = 20 * time.Millisecond

	out, err := runOnce(t, b, bp)
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	r := out.Results[0]
	assert.Equal(t, results.KindSampleTime, r.Kind)
	assert.Positive(t, r.SampleCount())
	assert.LessOrEqual(t, r.SampleCount(), int64(20*samplesPerMilli))
}

func TestGroupRouting(t *testing.T) {
	var produced, consumed atomic.Int64
	b := &bench.Benchmark{
		Name: "pc",
		Methods: []bench.Method{
			{Name: "put", Threads: 1, Op: counting(&produced)},
			{Name: "get", Threads: 2, Op: counting(&consumed)},
		},
	}
	bp := params("pc", infra.Throughput, 6)
	bp.ThreadGroups = []int{1, 2}
	bp.Methods = []string{"put", "get"}

	out, err := runOnce(t, b, bp)
	require.NoError(t, err)

	labels := make(map[string]int)
	for _, r := range out.Results {
		labels[r.Role.String()+":"+r.Label]++
	}
	assert.Equal(t, 6, labels["primary:pc"])
	assert.Equal(t, 2, labels["secondary:put"])
	assert.Equal(t, 4, labels["secondary:get"])
	assert.Positive(t, produced.Load())
	assert.Positive(t, consumed.Load())
}

func TestBadDistributionFailsFast(t *testing.T) {
	b := &bench.Benchmark{
		Name:    "pc",
		Methods: []bench.Method{{Name: "a", Op: noop}, {Name: "b", Op: noop}},
	}
	bp := params("pc", infra.Throughput, 3)
	bp.ThreadGroups = []int{1, 1}

	_, err := runOnce(t, b, bp)
	require.ErrorIs(t, err, infra.ErrThreadDistribution)
	assert.Contains(t, err.Error(), "harness failed to distribute threads")

	bp.ThreadGroups = nil
	_, err = NewExecutor(b, bp, false, discard)
	assert.ErrorIs(t, err, infra.ErrThreadDistribution)
}

type counters struct {
	mu                                   sync.Mutex
	trialUp, iterUp, iterDown, trialDown int
}

func (c *counters) bump(p *int) error {
	c.mu.Lock()
	*p++
	c.mu.Unlock()

	return nil
}

func TestSharedStateHooksRunOnce(t *testing.T) {
	def := bench.DefineState("shared", bench.BenchmarkScope, func(infra.Params) (*counters, error) {
		return &counters{}, nil
	}).
		Setup(bench.Trial, func(c *counters) error { return c.bump(&c.trialUp) }).
		Setup(bench.Iteration, func(c *counters) error { return c.bump(&c.iterUp) }).
		TearDown(bench.Iteration, func(c *counters) error { return c.bump(&c.iterDown) }).
		TearDown(bench.Trial, func(c *counters) error { return c.bump(&c.trialDown) })

	var seen *counters
	var once sync.Once
	b := &bench.Benchmark{
		Name:   "shared",
		States: []*bench.StateSpec{def.Spec()},
		Methods: []bench.Method{{
			Bind: func(th *bench.Thread) (bench.Op, error) {
				c := bench.StateFor[counters](th, "shared")
				once.Do(func() { seen = c })

				return noop, nil
			},
		}},
	}
	bp := params("shared", infra.Throughput, 4)
	bp.Measurement.Time = 5 * time.Millisecond

	e, err := NewExecutor(b, bp, false, discard)
	require.NoError(t, err)

	const iterations = 3
	for i := 1; i <= iterations; i++ {
		_, err := e.RunIteration(context.Background(), control(bp, i == 1, i == iterations))
		require.NoError(t, err)
	}
	require.NoError(t, e.Close())

	require.NotNil(t, seen)
	assert.Equal(t, 1, seen.trialUp)
	assert.Equal(t, iterations, seen.iterUp)
	assert.Equal(t, iterations, seen.iterDown)
	assert.Equal(t, 1, seen.trialDown)
}

func TestThreadStatePerWorker(t *testing.T) {
	var created atomic.Int32
	def := bench.DefineState("local", bench.ThreadScope, func(infra.Params) (*int, error) {
		created.Add(1)
		n := 0

		return &n, nil
	})
	b := &bench.Benchmark{
		Name:   "local",
		States: []*bench.StateSpec{def.Spec()},
		Methods: []bench.Method{{
			Bind: func(th *bench.Thread) (bench.Op, error) {
				n := bench.StateFor[int](th, "local")

				return func(bh *blackhole.Blackhole) error {
					*n++
					bh.ConsumeInt(*n)

					return nil
				}, nil
			},
		}},
	}

	_, err := runOnce(t, b, params("local", infra.Throughput, 3))
	require.NoError(t, err)
	assert.Equal(t, int32(3), created.Load())
}

func TestInvocationHooksAreNotMeasured(t *testing.T) {
	def := bench.DefineState("slow", bench.ThreadScope, func(infra.Params) (*struct{}, error) {
		return &struct{}{}, nil
	}).Setup(bench.Invocation, func(*struct{}) error {
		time.Sleep(200 * time.Microsecond)

		return nil
	})
	b := &bench.Benchmark{
		Name:    "hooked",
		States:  []*bench.StateSpec{def.Spec()},
		Methods: []bench.Method{{Op: noop}},
	}

	out, err := runOnce(t, b, params("hooked", infra.AverageTime, 1))
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	// Each call sleeps 200us in setup; the body itself is far cheaper.
	assert.Less(t, out.Results[0].Score(), 100.0)
}

func TestBodyErrorAbortsIteration(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int64
	b := &bench.Benchmark{Name: "fail", Methods: []bench.Method{{
		Op: func(*blackhole.Blackhole) error {
			if calls.Add(1) > 100 {
				return boom
			}

			return nil
		},
	}}}

	_, err := runOnce(t, b, params("fail", infra.Throughput, 2))
	require.ErrorIs(t, err, boom)

	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, PhaseBody, ee.Phase)
	assert.Equal(t, "fail", ee.Benchmark)
}

func TestPanicBecomesExecutionError(t *testing.T) {
	b := &bench.Benchmark{Name: "panics", Methods: []bench.Method{{
		Op: func(*blackhole.Blackhole) error { panic("kaboom") },
	}}}

	_, err := runOnce(t, b, params("panics", infra.Throughput, 2))

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestSetupErrorReportsPhase(t *testing.T) {
	def := bench.DefineState("broken", bench.BenchmarkScope, func(infra.Params) (*int, error) {
		return new(int), nil
	}).Setup(bench.Iteration, func(*int) error { return errors.New("no fixture") })
	b := &bench.Benchmark{
		Name:    "broken",
		States:  []*bench.StateSpec{def.Spec()},
		Methods: []bench.Method{{Op: noop}},
	}

	_, err := runOnce(t, b, params("broken", infra.Throughput, 2))
	var ee *ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, PhaseSetup, ee.Phase)
	assert.Contains(t, err.Error(), "no fixture")
}

func TestCancelledContextStopsIteration(t *testing.T) {
	b := &bench.Benchmark{Name: "noop", Methods: []bench.Method{{Op: noop}}}
	bp := params("noop", infra.Throughput, 1)
	bp.Measurement.Time = time.Hour

	e, err := NewExecutor(b, bp, false, discard)
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = e.RunIteration(ctx, control(bp, true, true))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateMutualExclusion(t *testing.T) {
	var g gate
	counter := 0

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				g.lock()
				counter++
				g.unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 8000, counter)
}
