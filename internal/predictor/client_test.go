package predictor

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pricecast/internal/config"
	"github.com/fyrsmithlabs/pricecast/internal/features"
	"github.com/fyrsmithlabs/pricecast/internal/logging"
	"github.com/fyrsmithlabs/pricecast/internal/telemetry"
)

// fakeBackend serves a fixed reply and records what it received.
type fakeBackend struct {
	*httptest.Server
	status  int
	body    string
	hits    atomic.Int32
	lastReq atomic.Pointer[capturedRequest]
}

type capturedRequest struct {
	Method      string
	ContentType string
	RequestID   string
	Body        map[string]float64
}

func newFakeBackend(t *testing.T, status int, body string) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{status: status, body: body}
	mux := http.NewServeMux()
	mux.HandleFunc("/predict_api", func(w http.ResponseWriter, r *http.Request) {
		fb.hits.Add(1)
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]float64
		_ = json.Unmarshal(raw, &decoded)
		fb.lastReq.Store(&capturedRequest{
			Method:      r.Method,
			ContentType: r.Header.Get("Content-Type"),
			RequestID:   r.Header.Get(RequestIDHeader),
			Body:        decoded,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(fb.status)
		_, _ = io.WriteString(w, fb.body)
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(fb.status)
		_, _ = io.WriteString(w, fb.body)
	})
	fb.Server = httptest.NewServer(mux)
	t.Cleanup(fb.Close)
	return fb
}

func newTestClient(t *testing.T, endpoint string, mutate func(*Config), opts ...Option) *Client {
	t.Helper()
	cfg := Config{Endpoint: endpoint}
	if mutate != nil {
		mutate(&cfg)
	}
	transport := &http.Transport{}
	t.Cleanup(transport.CloseIdleConnections)
	opts = append([]Option{WithHTTPClient(&http.Client{Transport: transport})}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c
}

func sampleVector() features.FeatureVector {
	return features.FeatureVector{
		CRIM: 0.00632, ZN: 18, INDUS: 2.31, CHAS: 0, NOX: 0.538, RM: 6.575,
		Age: 65.2, DIS: 4.09, RAD: 1, TAX: 296, PTRATIO: 15.3, B: 396.9, LSTAT: 4.98,
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(Config{})
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, config.DefaultPredictorEndpoint, cfg.Endpoint)
	assert.Equal(t, "http://localhost:5000/health", cfg.HealthEndpoint)
	assert.Equal(t, "$", cfg.CurrencySymbol)
	assert.Equal(t, features.PolicyCoerce, cfg.Policy)
	assert.Equal(t, config.DefaultFallbackMessage, cfg.FallbackMessage)
	assert.Zero(t, cfg.Timeout)
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient(Config{Endpoint: "not a url"})
	assert.Error(t, err)

	_, err = NewClient(Config{Timeout: -time.Second})
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	appCfg := config.Load()
	appCfg.Display.CurrencySymbol = "€"
	appCfg.Predictor.ValidationPolicy = "reject"

	cfg := FromConfig(appCfg)
	assert.Equal(t, "€", cfg.CurrencySymbol)
	assert.Equal(t, features.PolicyReject, cfg.Policy)
	assert.Equal(t, "http://localhost:5000/health", cfg.HealthEndpoint)
}

func TestPredict_Decoding(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    FailureKind // empty for success
		wantMessage string
	}{
		{"whole thousands", 200, `{"prediction": 24.0}`, "", "$24,000"},
		{"rounds to whole units", 200, `{"prediction": 21.6349}`, "", "$21,635"},
		{"rounds half away from zero", 200, `{"prediction": 0.0005}`, "", "$1"},
		{"large value grouping", 200, `{"prediction": 1234.5678}`, "", "$1,234,568"},
		{"beyond int64 after scaling", 200, `{"prediction": 1e16}`, "", "$10,000,000,000,000,000,000"},
		{"status code ignored on success", 500, `{"prediction": 5}`, "", "$5,000"},
		{"null error ignored", 200, `{"error": null, "prediction": 3}`, "", "$3,000"},
		{"service error verbatim", 500, `{"error": "Model not loaded"}`, FailureService, "Model not loaded"},
		{"service error with 200", 200, `{"error": "bad input shape"}`, FailureService, "bad input shape"},
		{"error wins over prediction", 200, `{"error": "x", "prediction": 1}`, FailureService, "x"},
		{"non-string error raw", 400, `{"error": {"code": 1}}`, FailureService, `{"code": 1}`},
		{"not json", 200, `<html>oops</html>`, FailureTransport, config.DefaultFallbackMessage},
		{"string prediction", 200, `{"prediction": "24"}`, FailureTransport, config.DefaultFallbackMessage},
		{"overflowing prediction", 200, `{"prediction": 1e999}`, FailureTransport, config.DefaultFallbackMessage},
		{"empty object", 200, `{}`, FailureTransport, config.DefaultFallbackMessage},
		{"array body", 200, `[24]`, FailureTransport, config.DefaultFallbackMessage},
		{"empty body", 204, ``, FailureTransport, config.DefaultFallbackMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t, tt.status, tt.body)
			c := newTestClient(t, fb.URL+"/predict_api", nil)

			res := c.Predict(context.Background(), sampleVector())
			assert.Equal(t, tt.wantMessage, res.Message())

			if tt.wantKind == "" {
				require.True(t, res.OK(), "expected success, got %+v", res.Failure)
				assert.Nil(t, res.Failure)
				return
			}
			require.NotNil(t, res.Failure)
			assert.Nil(t, res.Estimate)
			assert.Equal(t, tt.wantKind, res.Failure.Kind)
			if tt.wantKind == FailureTransport {
				assert.ErrorIs(t, res.Failure.Err, ErrMalformedResponse)
			}
		})
	}
}

func TestPredict_EstimateFields(t *testing.T) {
	fb := newFakeBackend(t, 200, `{"prediction": 24.0}`)
	c := newTestClient(t, fb.URL+"/predict_api", nil)

	res := c.Predict(context.Background(), sampleVector())
	require.True(t, res.OK())
	assert.Equal(t, 24.0, res.Estimate.Thousands)
	assert.Equal(t, "24000", res.Estimate.Amount.String())
	assert.Equal(t, "$24,000", res.Estimate.Display)
	assert.Equal(t, OutcomeSuccess, res.Outcome())
}

func TestPredict_CustomSymbolAndMessage(t *testing.T) {
	fb := newFakeBackend(t, 200, `{"prediction": 1.5}`)
	c := newTestClient(t, fb.URL+"/predict_api", func(cfg *Config) { cfg.CurrencySymbol = "£" })
	assert.Equal(t, "£1,500", c.Predict(context.Background(), sampleVector()).Message())

	bad := newFakeBackend(t, 200, `nope`)
	c = newTestClient(t, bad.URL+"/predict_api", func(cfg *Config) { cfg.FallbackMessage = "backend down" })
	assert.Equal(t, "backend down", c.Predict(context.Background(), sampleVector()).Message())
}

func TestPredict_RequestShape(t *testing.T) {
	fb := newFakeBackend(t, 200, `{"prediction": 24.0}`)
	c := newTestClient(t, fb.URL+"/predict_api", nil)

	c.Predict(context.Background(), sampleVector())

	got := fb.lastReq.Load()
	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "application/json", got.ContentType)
	_, err := uuid.Parse(got.RequestID)
	assert.NoError(t, err, "request id should be a uuid")

	require.Len(t, got.Body, features.Count)
	for _, name := range features.Names() {
		assert.Contains(t, got.Body, name)
	}
	assert.Equal(t, 0.00632, got.Body["CRIM"])
	assert.Equal(t, 296.0, got.Body["TAX"])
	assert.Equal(t, 4.98, got.Body["LSTAT"])
}

func TestPredict_PropagatesRequestID(t *testing.T) {
	fb := newFakeBackend(t, 200, `{"prediction": 1}`)
	c := newTestClient(t, fb.URL+"/predict_api", nil)

	ctx := logging.WithRequestID(context.Background(), "req-abc")
	c.Predict(ctx, sampleVector())
	assert.Equal(t, "req-abc", fb.lastReq.Load().RequestID)
}

func TestPredict_Unreachable(t *testing.T) {
	fb := newFakeBackend(t, 200, `{"prediction": 1}`)
	endpoint := fb.URL + "/predict_api"
	fb.Close()

	c := newTestClient(t, endpoint, nil)
	res := c.Predict(context.Background(), sampleVector())

	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureTransport, res.Failure.Kind)
	assert.Equal(t, config.DefaultFallbackMessage, res.Message())
	assert.Error(t, res.Failure.Err)
}

func slowBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = io.WriteString(w, `{"prediction": 1}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPredict_Timeout(t *testing.T) {
	srv := slowBackend(t)
	c := newTestClient(t, srv.URL, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })

	start := time.Now()
	res := c.Predict(context.Background(), sampleVector())
	assert.Less(t, time.Since(start), time.Second)
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureTransport, res.Failure.Kind)
}

func TestPredict_CallerCancellation(t *testing.T) {
	srv := slowBackend(t)
	c := newTestClient(t, srv.URL, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := c.Predict(ctx, sampleVector())
	require.NotNil(t, res.Failure)
	assert.Equal(t, FailureTransport, res.Failure.Kind)
	assert.ErrorIs(t, res.Failure.Err, context.DeadlineExceeded)
}

func TestPredict_NonFiniteInput(t *testing.T) {
	v := sampleVector()
	v.NOX = math.NaN()
	v.TAX = math.Inf(1)

	t.Run("reject policy fails before sending", func(t *testing.T) {
		fb := newFakeBackend(t, 200, `{"prediction": 1}`)
		c := newTestClient(t, fb.URL+"/predict_api", func(cfg *Config) { cfg.Policy = features.PolicyReject })

		res := c.Predict(context.Background(), v)
		require.NotNil(t, res.Failure)
		assert.Equal(t, FailureInvalidInput, res.Failure.Kind)
		assert.ErrorIs(t, res.Failure.Err, features.ErrInvalidFeature)
		assert.Contains(t, res.Message(), "NOX")
		assert.Contains(t, res.Message(), "TAX")
		assert.Zero(t, fb.hits.Load())
	})

	t.Run("coerce policy sends zeros", func(t *testing.T) {
		fb := newFakeBackend(t, 200, `{"prediction": 1}`)
		c := newTestClient(t, fb.URL+"/predict_api", nil)

		res := c.Predict(context.Background(), v)
		require.True(t, res.OK())
		got := fb.lastReq.Load()
		require.NotNil(t, got)
		assert.Equal(t, 0.0, got.Body["NOX"])
		assert.Equal(t, 0.0, got.Body["TAX"])
	})
}

func TestPredict_MetricsAndTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	fb := newFakeBackend(t, 500, `{"error": "Model not loaded"}`)
	c := newTestClient(t, fb.URL+"/predict_api", nil, WithTracerProvider(tp))

	before := testutil.ToFloat64(RequestsTotal.WithLabelValues(string(FailureService)))
	c.Predict(context.Background(), sampleVector())
	after := testutil.ToFloat64(RequestsTotal.WithLabelValues(string(FailureService)))
	assert.Equal(t, before+1, after)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "predictor.Predict", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, string(FailureService), attrs["predictor.outcome"])
	assert.NotEmpty(t, attrs["request.id"])
}

func TestPredict_Logging(t *testing.T) {
	tl := logging.NewTestLogger()

	ok := newFakeBackend(t, 200, `{"prediction": 2}`)
	c := newTestClient(t, ok.URL+"/predict_api", nil, WithLogger(tl.Logger))
	c.Predict(context.Background(), sampleVector())
	tl.AssertLogged(t, zapcore.InfoLevel, "prediction succeeded")
	tl.AssertField(t, "prediction succeeded", "display", "$2,000")

	bad := newFakeBackend(t, 200, `{"error": "boom"}`)
	c = newTestClient(t, bad.URL+"/predict_api", nil, WithLogger(tl.Logger))
	c.Predict(context.Background(), sampleVector())
	tl.AssertLogged(t, zapcore.WarnLevel, "prediction failed")
	tl.AssertField(t, "prediction failed", "outcome", string(FailureService))
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    *HealthStatus
		wantErr error
	}{
		{
			name:   "healthy",
			status: 200,
			body:   `{"status": "healthy", "model_loaded": true, "scaler_loaded": true}`,
			want:   &HealthStatus{Status: "healthy", ModelLoaded: true, ScalerLoaded: true, Healthy: true},
		},
		{
			name:   "unhealthy",
			status: 503,
			body:   `{"status": "unhealthy", "model_loaded": false, "scaler_loaded": true}`,
			want:   &HealthStatus{Status: "unhealthy", ScalerLoaded: true},
		},
		{
			name:   "unhealthy without body",
			status: 503,
			body:   ``,
			want:   &HealthStatus{Status: "unknown"},
		},
		{name: "unexpected status", status: 404, body: `not found`, wantErr: ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t, tt.status, tt.body)
			c := newTestClient(t, fb.URL+"/predict_api", nil)

			got, err := c.Health(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHealth_Span(t *testing.T) {
	tel := telemetry.NewTestTelemetry(t)
	fb := newFakeBackend(t, 503, `{"status": "unhealthy"}`)
	c := newTestClient(t, fb.URL+"/predict_api", nil, WithTracerProvider(tel.TracerProvider()))

	_, err := c.Health(context.Background())
	require.NoError(t, err)

	span, ok := tel.SpanByName("predictor.Health")
	require.True(t, ok)
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "false", attrs["backend.healthy"])
	assert.Equal(t, "unhealthy", attrs["backend.status"])
}

func TestHealth_Unreachable(t *testing.T) {
	fb := newFakeBackend(t, 200, `{}`)
	endpoint := fb.URL + "/predict_api"
	fb.Close()

	c := newTestClient(t, endpoint, nil)
	_, err := c.Health(context.Background())
	assert.Error(t, err)
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{Kind: FailureService, Message: "Model not loaded"}
	assert.Equal(t, "service_error: Model not loaded", f.Error())

	wrapped := &Failure{Kind: FailureTransport, Message: "down", Err: context.Canceled}
	assert.ErrorIs(t, wrapped, context.Canceled)
}

func TestResult_ZeroValue(t *testing.T) {
	var r Result
	assert.False(t, r.OK())
	assert.Empty(t, r.Message())
}
