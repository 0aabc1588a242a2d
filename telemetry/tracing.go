package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/weiihann/hotloop"

// Tracer returns the harness tracer. Spans cover runs, benchmarks and forks
// only; the global provider decides whether they go anywhere.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}
