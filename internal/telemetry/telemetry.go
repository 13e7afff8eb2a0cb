// Package telemetry wires up tracing and a byte-processed counter: an OTLP
// exporter when OTEL_EXPORTER_OTLP_ENDPOINT is set, a no-op provider
// otherwise, so bff never requires a collector to run.
package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and releases whatever tracer provider Init installed.
type Shutdown func(context.Context) error

// Init installs a global TracerProvider: an OTLP/HTTP exporter spooling
// spans to OTEL_EXPORTER_OTLP_ENDPOINT if set, or a no-op provider
// otherwise. Callers should defer the returned Shutdown.
func Init(ctx context.Context) (Shutdown, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns a named tracer from the currently installed provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// BytesProcessedCounter returns an instrument tracking total bytes streamed
// through the decision engines, reported against the default MeterProvider
// (a no-op unless the host process configures one).
func BytesProcessedCounter() (metric.Int64Counter, error) {
	return otel.Meter("bff").Int64Counter(
		"bff.bytes_processed",
		metric.WithDescription("total bytes streamed through a duplicate-decision engine"),
		metric.WithUnit("By"),
	)
}

// SpanForShard starts a span around processing one shard file, recording
// its path for trace correlation.
func SpanForShard(ctx context.Context, shardPath string) (context.Context, trace.Span) {
	ctx, span := Tracer("bff/workerpool").Start(ctx, "process_shard")
	span.SetAttributes(attribute.String("bff.shard_file", shardPath))
	return ctx, span
}
