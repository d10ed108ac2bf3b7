package telemetry

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// TestTelemetry records spans and metrics in memory. It does not touch the
// global providers.
type TestTelemetry struct {
	spans   *tracetest.SpanRecorder
	reader  *sdkmetric.ManualReader
	tracerP *trace.TracerProvider
	meterP  *sdkmetric.MeterProvider
}

// NewTestTelemetry creates an in-memory instance that shuts down with t.
func NewTestTelemetry(t testing.TB) *TestTelemetry {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	reader := sdkmetric.NewManualReader()
	tt := &TestTelemetry{
		spans:   spans,
		reader:  reader,
		tracerP: trace.NewTracerProvider(trace.WithSpanProcessor(spans)),
		meterP:  sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	}
	t.Cleanup(func() {
		_ = tt.tracerP.Shutdown(context.Background())
		_ = tt.meterP.Shutdown(context.Background())
	})
	return tt
}

// TracerProvider returns the recording provider.
func (tt *TestTelemetry) TracerProvider() oteltrace.TracerProvider { return tt.tracerP }

// MeterProvider returns the manual-read provider.
func (tt *TestTelemetry) MeterProvider() *sdkmetric.MeterProvider { return tt.meterP }

// Spans returns all ended spans.
func (tt *TestTelemetry) Spans() []trace.ReadOnlySpan { return tt.spans.Ended() }

// SpanByName returns the first ended span with the given name.
func (tt *TestTelemetry) SpanByName(name string) (trace.ReadOnlySpan, bool) {
	for _, s := range tt.spans.Ended() {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// CollectMetrics reads the current metric state.
func (tt *TestTelemetry) CollectMetrics(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	err := tt.reader.Collect(ctx, &rm)
	return rm, err
}
