package profile

import (
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/weiihann/hotloop/infra"
	"github.com/weiihann/hotloop/results"
)

const gcName = "gc"

const (
	metricAllocBytes   = "/gc/heap/allocs:bytes"
	metricAllocObjects = "/gc/heap/allocs:objects"
	metricGCCycles     = "/gc/cycles/total:gc-cycles"
	metricGCCPU        = "/cpu/classes/gc/total:cpu-seconds"
)

// gcProfiler reads runtime/metrics counters around each iteration.
type gcProfiler struct {
	alloc   bool
	churn   bool
	samples []metrics.Sample
	before  []metrics.Sample
	start   time.Time
}

func newGC(init string, _ *slog.Logger) (Profiler, error) {
	o, err := ParseInit(gcName, init, "alloc", "churn")
	if err != nil {
		return nil, err
	}

	alloc, err := o.Bool("alloc", true)
	if err != nil {
		return nil, err
	}
	churn, err := o.Bool("churn", false)
	if err != nil {
		return nil, err
	}

	names := []string{metricAllocBytes, metricAllocObjects, metricGCCycles, metricGCCPU}
	p := &gcProfiler{
		alloc:   alloc,
		churn:   churn,
		samples: make([]metrics.Sample, len(names)),
		before:  make([]metrics.Sample, len(names)),
	}
	for i, n := range names {
		p.samples[i].Name = n
		p.before[i].Name = n
	}

	return p, nil
}

func (p *gcProfiler) Name() string { return gcName }

func (p *gcProfiler) Description() string {
	return "Heap allocation and GC activity, normalised per operation"
}

func (p *gcProfiler) BeforeIteration(infra.BenchmarkParams, infra.IterationParams) error {
	if p.churn {
		runtime.GC()
	}
	metrics.Read(p.before)
	p.start = time.Now()

	return nil
}

func (p *gcProfiler) AfterIteration(
	_ infra.BenchmarkParams,
	_ infra.IterationParams,
	meta results.IterationMeta,
) ([]results.Result, error) {
	elapsed := time.Since(p.start)
	metrics.Read(p.samples)

	allocBytes := p.delta(0)
	allocObjects := p.delta(1)
	cycles := p.delta(2)
	gcCPU := p.delta(3)

	var out []results.Result
	if p.alloc {
		if elapsed > 0 {
			mbPerSec := allocBytes / elapsed.Seconds() / (1 << 20)
			out = append(out, results.NewScalar(results.Secondary, "gc.alloc.rate", mbPerSec, "MB/sec", results.Avg))
		}
		if meta.AllOps > 0 {
			out = append(out,
				results.NewScalar(results.Secondary, "gc.alloc.rate.norm",
					allocBytes/float64(meta.AllOps), "B/op", results.Avg),
				results.NewScalar(results.Secondary, "gc.alloc.objects.norm",
					allocObjects/float64(meta.AllOps), "objs/op", results.Avg),
			)
		}
	}

	out = append(out,
		results.NewScalar(results.Secondary, "gc.count", cycles, "counts", results.Sum),
		results.NewScalar(results.Secondary, "gc.time", gcCPU*1000, "ms", results.Sum),
	)

	return out, nil
}

func (p *gcProfiler) delta(i int) float64 {
	return sampleValue(p.samples[i]) - sampleValue(p.before[i])
}

func sampleValue(s metrics.Sample) float64 {
	switch s.Value.Kind() {
	case metrics.KindUint64:
		return float64(s.Value.Uint64())
	case metrics.KindFloat64:
		return s.Value.Float64()
	default:
		return 0
	}
}

var _ Internal = (*gcProfiler)(nil)
