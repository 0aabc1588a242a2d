package samples

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiihann/hotloop/bench"
	"github.com/weiihann/hotloop/options"
	"github.com/weiihann/hotloop/runner"
	"github.com/weiihann/hotloop/telemetry"
)

func TestRegister(t *testing.T) {
	reg := bench.NewRegistry()
	require.NoError(t, Register(reg))

	var names []string
	for _, b := range reg.All() {
		names = append(names, b.Name)
	}
	assert.ElementsMatch(t,
		[]string{"Noop", "Alloc", "ConsumeCPU", "ProducerConsumer", "Sort", "MapLookup"},
		names,
	)

	assert.Error(t, Register(reg), "registering twice must fail")
}

func TestProducerConsumerIsGroup(t *testing.T) {
	b := ProducerConsumer()
	assert.True(t, b.IsGroup())
	assert.Equal(t, []int{1, 1}, b.Ratios())
	assert.Equal(t, []string{"produce", "consume"}, b.MethodNames())
}

func TestSamplesRun(t *testing.T) {
	if testing.Short() {
		t.Skip("runs every sample benchmark")
	}

	reg := bench.NewRegistry()
	require.NoError(t, Register(reg))

	ob := options.NewBuilder().
		Forks(0).
		WarmupIterations(0).
		MeasurementIterations(1).
		MeasurementTime(20 * time.Millisecond)

	// Noop, 2 Alloc, 3 ConsumeCPU, 2 ProducerConsumer, 4 Sort, 3 MapLookup.
	want := 15
	if runtime.GOMAXPROCS(0) < 2 {
		// A lone CPU runs one side of the queue for the whole window.
		ob.Exclude("^ProducerConsumer$")
		want -= 2
	}
	o := ob.Build()

	r := runner.New(reg, o, telemetry.Discard())
	out, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, out.Failures)

	require.Len(t, out.Results, want)
	for _, rr := range out.Results {
		p, err := rr.Primary()
		require.NoError(t, err)
		assert.Greater(t, p.Score(), 0.0, rr.Params.Identity())
	}
}

func TestInvalidDistribution(t *testing.T) {
	reg := bench.NewRegistry()
	require.NoError(t, reg.Register(Sort()))

	o := options.NewBuilder().
		Forks(0).
		WarmupIterations(0).
		MeasurementIterations(1).
		MeasurementTime(10*time.Millisecond).
		Param("size", "10").
		Param("distribution", "zipf").
		Build()

	out, err := runner.New(reg, o, telemetry.Discard()).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Failures, 1)
	assert.Contains(t, out.Failures[0].Error(), "unknown distribution")
}
