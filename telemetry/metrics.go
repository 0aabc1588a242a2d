package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the harness's own counters. A nil *Metrics records nothing.
type Metrics struct {
	ForksTotal        *prometheus.CounterVec
	ForkDuration      prometheus.Histogram
	IterationsTotal   *prometheus.CounterVec
	BenchmarkErrors   *prometheus.CounterVec
	ProfilersSkipped  *prometheus.CounterVec
	Score             *prometheus.GaugeVec
	BenchmarksPending prometheus.Gauge
}

// NewMetrics creates the harness metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.ForksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotloop_forks_total",
			Help: "Forked benchmark processes by outcome",
		},
		[]string{"kind", "outcome"},
	)

	m.ForkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hotloop_fork_duration_seconds",
			Help:    "Wall time of forked benchmark processes",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	m.IterationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotloop_iterations_total",
			Help: "Completed iterations by phase",
		},
		[]string{"phase"},
	)

	m.BenchmarkErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotloop_benchmark_errors_total",
			Help: "Benchmarks that failed",
		},
		[]string{"benchmark"},
	)

	m.ProfilersSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hotloop_profilers_skipped_total",
			Help: "Profilers skipped because the host cannot support them",
		},
		[]string{"profiler"},
	)

	m.Score = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hotloop_score",
			Help: "Latest primary score per benchmark",
		},
		[]string{"benchmark", "mode", "unit"},
	)

	m.BenchmarksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hotloop_benchmarks_pending",
			Help: "Benchmarks left in the current run",
		},
	)

	reg.MustRegister(
		m.ForksTotal,
		m.ForkDuration,
		m.IterationsTotal,
		m.BenchmarkErrors,
		m.ProfilersSkipped,
		m.Score,
		m.BenchmarksPending,
	)

	return m
}

// ForkFinished records one fork.
func (m *Metrics) ForkFinished(warmup bool, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	kind := "measured"
	if warmup {
		kind = "warmup"
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.ForksTotal.WithLabelValues(kind, outcome).Inc()
	m.ForkDuration.Observe(elapsed.Seconds())
}

// IterationFinished records one iteration.
func (m *Metrics) IterationFinished(warmup bool) {
	if m == nil {
		return
	}

	phase := "measurement"
	if warmup {
		phase = "warmup"
	}
	m.IterationsTotal.WithLabelValues(phase).Inc()
}

// BenchmarkFailed records a failed benchmark.
func (m *Metrics) BenchmarkFailed(benchmark string) {
	if m == nil {
		return
	}
	m.BenchmarkErrors.WithLabelValues(benchmark).Inc()
}

// ProfilerSkipped records an unavailable profiler.
func (m *Metrics) ProfilerSkipped(name string) {
	if m == nil {
		return
	}
	m.ProfilersSkipped.WithLabelValues(name).Inc()
}

// SetScore publishes the primary score of a finished benchmark.
func (m *Metrics) SetScore(benchmark, mode, unit string, score float64) {
	if m == nil {
		return
	}
	m.Score.WithLabelValues(benchmark, mode, unit).Set(score)
}

// SetPending publishes how many benchmarks are left.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.BenchmarksPending.Set(float64(n))
}

// Serve exposes the metrics of gatherer on addr under /metrics until ctx is
// done. It returns the address actually bound, useful with port 0.
func Serve(
	ctx context.Context,
	addr string,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))

	return ln.Addr().String(), nil
}
