package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pricecast/internal/logging"
)

type recordingLogExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingLogExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingLogExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingLogExporter) bodies() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r.Body().AsString())
	}
	return out
}

func restoreGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	prevLP := global.GetLoggerProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
		global.SetLoggerProvider(prevLP)
	})
}

func TestNew_Disabled(t *testing.T) {
	tel, err := New(t.Context(), NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{Healthy: true}, tel.Health())
	assert.NotNil(t, tel.Tracer("test"))
	assert.NotNil(t, tel.Meter("test"))
	assert.Equal(t, otel.GetTracerProvider(), tel.TracerProvider())
	assert.Equal(t, global.GetLoggerProvider(), tel.LoggerProvider())
	assert.NoError(t, tel.ForceFlush(t.Context()))
	assert.NoError(t, tel.Shutdown(t.Context()))
	assert.False(t, tel.Health().Healthy)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Endpoint = ""

	_, err := New(t.Context(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry config")
}

func TestNew_EnabledWithInjectedExporters(t *testing.T) {
	restoreGlobals(t)

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	logger := logging.NewTestLogger()

	cfg := NewDefaultConfig()
	cfg.Enabled = true

	tel, err := New(t.Context(), cfg, logger.Logger,
		WithSpanExporter(spans),
		WithMetricReader(reader),
		WithLogExporter(&recordingLogExporter{}),
	)
	require.NoError(t, err)
	assert.True(t, tel.IsEnabled())
	assert.False(t, tel.Health().Degraded)

	_, span := tel.Tracer("pricecast/test").Start(t.Context(), "unit")
	span.End()
	require.Len(t, spans.GetSpans(), 1)
	assert.Equal(t, "unit", spans.GetSpans()[0].Name)

	counter, err := tel.Meter("pricecast/test").Int64Counter("unit_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	assert.NoError(t, tel.ForceFlush(t.Context()))
	assert.NoError(t, tel.Shutdown(t.Context()))
	logger.AssertLogged(t, zapcore.InfoLevel, "telemetry initialized")
}

func TestNew_LoggerProviderReceivesBridgedLogs(t *testing.T) {
	restoreGlobals(t)

	logs := &recordingLogExporter{}
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics = false

	tel, err := New(t.Context(), cfg, nil,
		WithSpanExporter(tracetest.NewInMemoryExporter()),
		WithLogExporter(logs),
	)
	require.NoError(t, err)
	require.NotNil(t, tel.loggerProvider)

	lc := logging.NewDefaultConfig()
	lc.Output = logging.OutputConfig{OTEL: true}
	lc.Sampling.Enabled = false
	logger, err := logging.NewLogger(lc, tel.LoggerProvider())
	require.NoError(t, err)

	logger.Info(t.Context(), "prediction succeeded", zap.String("display", "$24,000"))

	assert.NoError(t, tel.ForceFlush(t.Context()))
	assert.Equal(t, []string{"prediction succeeded"}, logs.bodies())
	assert.NoError(t, tel.Shutdown(t.Context()))
}

func TestNew_LogsDisabled(t *testing.T) {
	restoreGlobals(t)

	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Metrics = false
	cfg.Logs = false

	tel, err := New(t.Context(), cfg, nil, WithSpanExporter(tracetest.NewInMemoryExporter()))
	require.NoError(t, err)
	assert.Nil(t, tel.loggerProvider)
	assert.NoError(t, tel.Shutdown(t.Context()))
}

func TestTelemetry_NilSafe(t *testing.T) {
	var tel *Telemetry

	assert.False(t, tel.IsEnabled())
	assert.Equal(t, HealthStatus{}, tel.Health())
	assert.NotNil(t, tel.Tracer("x"))
	assert.NotNil(t, tel.Meter("x"))
	assert.NotNil(t, tel.LoggerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
	assert.NoError(t, tel.ForceFlush(context.Background()))
}

func TestTestTelemetry(t *testing.T) {
	tt := NewTestTelemetry(t)

	_, span := tt.TracerProvider().Tracer("x").Start(t.Context(), "recorded")
	span.End()

	got, ok := tt.SpanByName("recorded")
	require.True(t, ok)
	assert.Equal(t, "recorded", got.Name())
	assert.Len(t, tt.Spans(), 1)

	counter, err := tt.MeterProvider().Meter("x").Int64Counter("events_total")
	require.NoError(t, err)
	counter.Add(t.Context(), 1)

	rm, err := tt.CollectMetrics(t.Context())
	require.NoError(t, err)
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, "events_total", rm.ScopeMetrics[0].Metrics[0].Name)
}
