// Package http serves the prediction form and session API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pricecast/internal/features"
	"github.com/fyrsmithlabs/pricecast/internal/logging"
	"github.com/fyrsmithlabs/pricecast/internal/predictor"
	"github.com/fyrsmithlabs/pricecast/internal/session"
)

const maxBodyBytes = 1 << 20

// Backend checks the regression service.
type Backend interface {
	Health(ctx context.Context) (*predictor.HealthStatus, error)
}

// Form is the pending-guarded submission flow.
type Form interface {
	Submit(ctx context.Context, raw map[string]string) (predictor.Result, error)
	Snapshot() predictor.Snapshot
}

// Deps are the server's collaborators.
type Deps struct {
	Backend Backend
	Form    Form
	Store   *session.Store
	Logger  *logging.Logger
	// Metrics defaults to the global meter provider when nil.
	Metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RatePerSecond <= 0 disables the predict limiter.
	RatePerSecond float64
	RateBurst     int
}

// Server provides HTTP endpoints for pricecast.
type Server struct {
	echo    *echo.Echo
	backend Backend
	form    Form
	store   *session.Store
	logger  *logging.Logger
	config  *Config
	limiter *ipLimiter
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, cfg *Config) (*Server, error) {
	if deps.Form == nil {
		return nil, errors.New("form cannot be nil")
	}
	if deps.Store == nil {
		return nil, errors.New("session store cannot be nil")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	if deps.Metrics == nil {
		deps.Metrics = NewHTTPMetrics(deps.Logger)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext(deps.Logger))
	e.Use(accessLog(deps.Logger))
	e.Use(deps.Metrics.MetricsMiddleware())

	s := &Server{
		echo:    e,
		backend: deps.Backend,
		form:    deps.Form,
		store:   deps.Store,
		logger:  deps.Logger,
		config:  cfg,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = newIPLimiter(cfg.RatePerSecond, burst)
	}

	s.registerRoutes()
	return s, nil
}

// requestContext copies the echo request id and logger into the request
// context so downstream calls log and propagate the same id.
func requestContext(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := logging.WithLogger(req.Context(), logger)
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ctx = logging.WithRequestID(ctx, id)
			}
			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

func accessLog(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	}
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/backend/health", s.handleBackendHealth)

	var limit []echo.MiddlewareFunc
	if s.limiter != nil {
		limit = append(limit, s.limiter.middleware(s.logger))
	}
	v1.POST("/predict", s.handlePredict, limit...)
	v1.GET("/predict/state", s.handlePredictState)

	sess := v1.Group("/session")
	sess.GET("", s.handleSession)
	sess.DELETE("", s.handleSignOut)
	sess.POST("/signin", s.handleSignIn)
	sess.POST("/signup", s.handleSignUp)
	sess.POST("/google", s.handleGoogle)
	sess.PATCH("/profile", s.handleProfile)
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleBackendHealth(c echo.Context) error {
	if s.backend == nil {
		return c.JSON(http.StatusServiceUnavailable, BackendHealthResponse{Status: "unknown", Error: "no backend configured"})
	}
	status, err := s.backend.Health(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, BackendHealthResponse{Status: "unreachable", Error: err.Error()})
	}

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, BackendHealthResponse{
		Status:       status.Status,
		ModelLoaded:  status.ModelLoaded,
		ScalerLoaded: status.ScalerLoaded,
	})
}

func (s *Server) handlePredict(c echo.Context) error {
	raw, err := readFeatures(c)
	if err != nil {
		s.logger.Warn(c.Request().Context(), "invalid predict request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.form.Submit(c.Request().Context(), raw)
	if errors.Is(err, predictor.ErrPending) {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toPredictResponse(predictor.StateIdle, &res))
}

func (s *Server) handlePredictState(c echo.Context) error {
	snap := s.form.Snapshot()
	resp := StateResponse{State: snap.State.String()}
	if snap.Last != nil {
		resp.Last = toPredictResponse(snap.State, snap.Last)
	}
	return c.JSON(http.StatusOK, resp)
}

// readFeatures accepts {"features": {...}}, a flat JSON object, or a form
// body. JSON values may be strings or numbers. Unknown keys are dropped.
func readFeatures(c echo.Context) (map[string]string, error) {
	req := c.Request()
	ctype := req.Header.Get(echo.HeaderContentType)

	if strings.HasPrefix(ctype, echo.MIMEApplicationForm) || strings.HasPrefix(ctype, echo.MIMEMultipartForm) {
		params, err := c.FormParams()
		if err != nil {
			return nil, err
		}
		raw := make(map[string]string, features.Count)
		for _, name := range features.Names() {
			raw[name] = params.Get(name)
		}
		return raw, nil
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return map[string]string{}, nil
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("body is not valid JSON")
	}

	doc := gjson.ParseBytes(body)
	if f := doc.Get("features"); f.IsObject() {
		doc = f
	}
	if !doc.IsObject() {
		return nil, errors.New("features must be an object")
	}

	raw := make(map[string]string, features.Count)
	doc.ForEach(func(key, value gjson.Result) bool {
		if !features.Known(key.String()) {
			return true
		}
		if value.Type == gjson.String {
			raw[key.String()] = value.Str
		} else {
			// Numbers parse from their literal; anything else fails to parse.
			raw[key.String()] = value.Raw
		}
		return true
	})
	return raw, nil
}

func toPredictResponse(state predictor.State, res *predictor.Result) *PredictResponse {
	resp := &PredictResponse{State: state.String()}
	switch {
	case res.Estimate != nil:
		amount := json.Number(res.Estimate.Amount.String())
		thousands := res.Estimate.Thousands
		resp.Prediction = res.Estimate.Display
		resp.Amount = &amount
		resp.Thousands = &thousands
	case res.Failure != nil:
		resp.Error = res.Failure.Message
		resp.Kind = string(res.Failure.Kind)
	}
	return resp
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
