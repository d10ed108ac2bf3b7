// Package predictor submits housing feature vectors to the remote regression
// service and turns its answer into a displayable Result.
//
// The backend contract is a JSON POST of the thirteen named features. The
// reply is either {"prediction": <number>} in thousands of currency units or
// {"error": <message>}. The HTTP status code is not consulted: the body alone
// decides the outcome.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pricecast/internal/config"
	"github.com/fyrsmithlabs/pricecast/internal/currency"
	"github.com/fyrsmithlabs/pricecast/internal/features"
	"github.com/fyrsmithlabs/pricecast/internal/logging"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/pricecast/internal/predictor"

	// RequestIDHeader carries the per-call request id to the backend.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 1 << 20
)

var (
	// ErrMalformedResponse is the cause of a transport failure whose body was
	// not a recognizable prediction reply.
	ErrMalformedResponse = errors.New("malformed prediction response")

	// ErrUnexpectedStatus is returned by Health for codes other than 200/503.
	ErrUnexpectedStatus = errors.New("unexpected backend status")
)

// Config configures a Client.
type Config struct {
	Endpoint       string
	HealthEndpoint string
	// Timeout bounds each call. Zero means the client enforces none and
	// relies on the caller's context.
	Timeout         time.Duration
	CurrencySymbol  string
	Policy          features.Policy
	FallbackMessage string
}

// FromConfig extracts client settings from the application config.
func FromConfig(cfg *config.Config) Config {
	return Config{
		Endpoint:        cfg.Predictor.Endpoint,
		HealthEndpoint:  cfg.Predictor.HealthURL(),
		Timeout:         cfg.Predictor.Timeout,
		CurrencySymbol:  cfg.Display.CurrencySymbol,
		Policy:          cfg.Policy(),
		FallbackMessage: cfg.Predictor.FallbackMessage,
	}
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (http.DefaultClient otherwise).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracerProvider sets the tracer provider (global provider otherwise).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(instrumentationName) }
}

// Client talks to the regression backend. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *logging.Logger
	tracer trace.Tracer
}

// NewClient creates a prediction client. Empty config fields take the
// package defaults.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = config.DefaultPredictorEndpoint
	}
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid predictor endpoint: %w", err)
	}
	if cfg.HealthEndpoint == "" {
		cfg.HealthEndpoint = config.PredictorConfig{Endpoint: cfg.Endpoint}.HealthURL()
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = currency.DefaultSymbol
	}
	if cfg.Policy == "" {
		cfg.Policy = features.PolicyCoerce
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = config.DefaultFallbackMessage
	}
	if cfg.Timeout < 0 {
		return nil, errors.New("predictor timeout cannot be negative")
	}

	c := &Client{
		cfg:    cfg,
		http:   http.DefaultClient,
		logger: logging.NewNop(),
		tracer: otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config { return c.cfg }

// Predict submits v and returns the display result. It never returns a Go
// error: every failure is reported as a Failure inside the Result.
func (c *Client) Predict(ctx context.Context, v features.FeatureVector) Result {
	start := time.Now()

	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = logging.WithRequestID(ctx, requestID)
	}

	ctx, span := c.tracer.Start(ctx, "predictor.Predict",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.String("predictor.endpoint", c.cfg.Endpoint),
		),
	)
	defer span.End()

	res := c.predict(ctx, v, requestID)

	elapsed := time.Since(start)
	RequestDuration.Observe(elapsed.Seconds())
	recordOutcome(res)
	span.SetAttributes(attribute.String("predictor.outcome", res.Outcome()))

	if res.Failure != nil {
		span.SetStatus(codes.Error, string(res.Failure.Kind))
		if res.Failure.Err != nil {
			span.RecordError(res.Failure.Err)
		}
		c.logger.Warn(ctx, "prediction failed",
			zap.String("outcome", res.Outcome()),
			zap.String("message", res.Failure.Message),
			zap.Error(res.Failure.Err),
			zap.Duration("duration", elapsed),
		)
		return res
	}

	span.SetStatus(codes.Ok, "")
	c.logger.Info(ctx, "prediction succeeded",
		zap.Float64("thousands", res.Estimate.Thousands),
		zap.String("display", res.Estimate.Display),
		zap.Duration("duration", elapsed),
	)
	return res
}

func (c *Client) predict(ctx context.Context, v features.FeatureVector, requestID string) Result {
	if err := v.Validate(); err != nil {
		if c.cfg.Policy == features.PolicyReject {
			return failure(FailureInvalidInput, err.Error(), err)
		}
		v = v.Sanitize()
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(v.Map())
	if err != nil {
		return c.transportFailure(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return c.transportFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	c.logger.Debug(ctx, "submitting prediction",
		zap.String("endpoint", c.cfg.Endpoint),
		zap.Float64s("features", v.Values()),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportFailure(fmt.Errorf("post %s: %w", c.cfg.Endpoint, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportFailure(fmt.Errorf("read response: %w", err))
	}

	return c.decode(body)
}

// decode interprets a backend reply. An "error" field wins over
// "prediction"; anything else that is not a numeric prediction is malformed.
func (c *Client) decode(body []byte) Result {
	if !gjson.ValidBytes(body) {
		return c.transportFailure(fmt.Errorf("%w: body is not JSON", ErrMalformedResponse))
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return c.transportFailure(fmt.Errorf("%w: body is not an object", ErrMalformedResponse))
	}

	if e := doc.Get("error"); truthy(e) {
		msg := e.Raw
		if e.Type == gjson.String {
			msg = e.Str
		}
		return failure(FailureService, msg, nil)
	}

	p := doc.Get("prediction")
	if p.Type != gjson.Number {
		return c.transportFailure(fmt.Errorf("%w: missing numeric prediction", ErrMalformedResponse))
	}
	if math.IsInf(p.Num, 0) || math.IsNaN(p.Num) {
		return c.transportFailure(fmt.Errorf("%w: prediction %s is out of range", ErrMalformedResponse, p.Raw))
	}

	amount, display := currency.FormatThousands(p.Num, c.cfg.CurrencySymbol)
	return success(Estimate{Thousands: p.Num, Amount: amount, Display: display})
}

func (c *Client) transportFailure(err error) Result {
	return failure(FailureTransport, c.cfg.FallbackMessage, err)
}

// truthy reports whether an "error" value should be treated as set. Null,
// false, zero and empty strings are ignored.
func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null, gjson.False:
		return false
	case gjson.String:
		return r.Str != ""
	case gjson.Number:
		return r.Num != 0
	default:
		return r.Exists()
	}
}

// HealthStatus is the backend's /health reply.
type HealthStatus struct {
	Status       string `json:"status"`
	ModelLoaded  bool   `json:"model_loaded"`
	ScalerLoaded bool   `json:"scaler_loaded"`
	// Healthy is true when the backend answered 200.
	Healthy bool `json:"healthy"`
}

// Health queries the backend health endpoint. A 503 reply is reported as an
// unhealthy status, not an error.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	if c.cfg.HealthEndpoint == "" {
		return nil, errors.New("no health endpoint configured")
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	ctx, span := c.tracer.Start(ctx, "predictor.Health", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.HealthEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unreachable")
		return nil, fmt.Errorf("get %s: %w", c.cfg.HealthEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read health response: %w", err)
	}

	status := &HealthStatus{Healthy: resp.StatusCode == http.StatusOK}
	if gjson.ValidBytes(body) {
		fields := gjson.GetManyBytes(body, "status", "model_loaded", "scaler_loaded")
		status.Status = fields[0].String()
		status.ModelLoaded = fields[1].Bool()
		status.ScalerLoaded = fields[2].Bool()
	}
	if status.Status == "" {
		status.Status = "unknown"
	}

	span.SetAttributes(
		attribute.Bool("backend.healthy", status.Healthy),
		attribute.String("backend.status", status.Status),
	)
	c.logger.Debug(ctx, "backend health",
		zap.Bool("healthy", status.Healthy),
		zap.String("status", status.Status),
	)
	return status, nil
}
