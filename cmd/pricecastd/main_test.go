package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/fyrsmithlabs/pricecast/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

type countingLogExporter struct {
	mu    sync.Mutex
	count int
}

func (e *countingLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count += len(records)
	return nil
}

func (e *countingLogExporter) Shutdown(context.Context) error   { return nil }
func (e *countingLogExporter) ForceFlush(context.Context) error { return nil }

func (e *countingLogExporter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func TestInitLogger_OTELBridge(t *testing.T) {
	exp := &countingLogExporter{}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exp)))
	t.Cleanup(func() { _ = lp.Shutdown(context.Background()) })

	cfg := config.Load()
	cfg.Observability.LogLevel = "warn"

	logger, err := initLogger(cfg, lp)
	require.NoError(t, err)
	logger.Warn(t.Context(), "not bridged")
	assert.Zero(t, exp.Count(), "telemetry disabled keeps logs local")

	cfg.Observability.EnableTelemetry = true
	logger, err = initLogger(cfg, lp)
	require.NoError(t, err)
	logger.Warn(t.Context(), "bridged")
	assert.Equal(t, 1, exp.Count())
}

func TestRun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/health" {
			fmt.Fprint(w, `{"status":"healthy","model_loaded":true,"scaler_loaded":true}`)
			return
		}
		fmt.Fprint(w, `{"prediction": 24.0}`)
	}))
	t.Cleanup(backend.Close)

	t.Setenv("HOME", t.TempDir())
	cfg := config.Load()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Predictor.Endpoint = backend.URL + "/predict_api"
	cfg.Session.Dir = t.TempDir()
	cfg.Observability.LogLevel = "error"
	require.NoError(t, cfg.Validate())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/api/v1/predict", "application/json", strings.NewReader(`{"features":{"CRIM":"0.1"}}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"prediction":"$24,000"`)

	resp, err = http.Get(base + "/api/v1/backend/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
