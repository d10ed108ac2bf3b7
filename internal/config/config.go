// Package config provides configuration loading for pricecast.
//
// Configuration is loaded from environment variables with defaults, and
// optionally from a YAML file (see LoadWithFile).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/pricecast/internal/features"
)

// Defaults shared by Load and applyDefaults.
const (
	DefaultPredictorEndpoint = "http://localhost:5000/predict_api"
	DefaultFallbackMessage   = "Failed to get prediction. Make sure the backend is running at http://localhost:5000"
	DefaultSessionKey        = "authUser"
	DefaultCurrencySymbol    = "$"
	DefaultHTTPPort          = 8080
)

// Config holds the complete pricecast configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Predictor     PredictorConfig     `koanf:"predictor"`
	Display       DisplayConfig       `koanf:"display"`
	Session       SessionConfig       `koanf:"session"`
	Observability ObservabilityConfig `koanf:"observability"`
	RateLimit     RateLimitConfig     `koanf:"ratelimit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// PredictorConfig describes the remote regression service.
type PredictorConfig struct {
	Endpoint         string        `koanf:"endpoint"`
	HealthEndpoint   string        `koanf:"health_endpoint"`
	Timeout          time.Duration `koanf:"timeout"` // zero: no client-side timeout
	ValidationPolicy string        `koanf:"validation_policy"`
	FallbackMessage  string        `koanf:"fallback_message"`
}

// DisplayConfig controls how estimates are rendered.
type DisplayConfig struct {
	CurrencySymbol string `koanf:"currency_symbol"`
}

// SessionConfig locates the persisted session record.
type SessionConfig struct {
	Dir string `koanf:"dir"`
	Key string `koanf:"key"`
}

// ObservabilityConfig holds logging and OpenTelemetry settings.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// RateLimitConfig bounds prediction submissions per client IP.
// PerSecond <= 0 disables limiting.
type RateLimitConfig struct {
	PerSecond float64 `koanf:"per_second"`
	Burst     int     `koanf:"burst"`
}

// Load loads configuration from environment variables with defaults.
//
// Environment variables:
//   - SERVER_HTTP_HOST: listen host (default: localhost)
//   - SERVER_HTTP_PORT: listen port (default: 8080)
//   - SERVER_SHUTDOWN_TIMEOUT: graceful shutdown timeout (default: 10s)
//   - PREDICTOR_ENDPOINT: regression endpoint (default: http://localhost:5000/predict_api)
//   - PREDICTOR_HEALTH_ENDPOINT: health endpoint (default: derived from endpoint)
//   - PREDICTOR_TIMEOUT: client timeout, 0 disables (default: 0)
//   - PREDICTOR_VALIDATION_POLICY: coerce or reject (default: coerce)
//   - DISPLAY_CURRENCY_SYMBOL: currency prefix (default: $)
//   - SESSION_DIR: session storage directory (default: ~/.config/pricecast/session)
//   - SESSION_KEY: session storage key (default: authUser)
//   - OBSERVABILITY_ENABLE_TELEMETRY: enable OTLP export (default: false)
//   - RATELIMIT_PER_SECOND / RATELIMIT_BURST: per-IP predict limiter (default: 1 / 10)
func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HTTP_HOST", "localhost"),
			Port:            getEnvInt("SERVER_HTTP_PORT", DefaultHTTPPort),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Predictor: PredictorConfig{
			Endpoint:         getEnvString("PREDICTOR_ENDPOINT", DefaultPredictorEndpoint),
			HealthEndpoint:   getEnvString("PREDICTOR_HEALTH_ENDPOINT", ""),
			Timeout:          getEnvDuration("PREDICTOR_TIMEOUT", 0),
			ValidationPolicy: getEnvString("PREDICTOR_VALIDATION_POLICY", string(features.PolicyCoerce)),
			FallbackMessage:  getEnvString("PREDICTOR_FALLBACK_MESSAGE", DefaultFallbackMessage),
		},
		Display: DisplayConfig{
			CurrencySymbol: getEnvString("DISPLAY_CURRENCY_SYMBOL", DefaultCurrencySymbol),
		},
		Session: SessionConfig{
			Dir: getEnvString("SESSION_DIR", ""),
			Key: getEnvString("SESSION_KEY", DefaultSessionKey),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OBSERVABILITY_ENABLE_TELEMETRY", false),
			ServiceName:     getEnvString("OBSERVABILITY_SERVICE_NAME", "pricecast"),
			OTLPEndpoint:    getEnvString("OBSERVABILITY_OTLP_ENDPOINT", "localhost:4317"),
			LogLevel:        getEnvString("OBSERVABILITY_LOG_LEVEL", "info"),
			LogFormat:       getEnvString("OBSERVABILITY_LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			PerSecond: getEnvFloat("RATELIMIT_PER_SECOND", 1),
			Burst:     getEnvInt("RATELIMIT_BURST", 10),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if err := validateURL(c.Predictor.Endpoint); err != nil {
		return fmt.Errorf("predictor.endpoint: %w", err)
	}
	if c.Predictor.HealthEndpoint != "" {
		if err := validateURL(c.Predictor.HealthEndpoint); err != nil {
			return fmt.Errorf("predictor.health_endpoint: %w", err)
		}
	}
	if c.Predictor.Timeout < 0 {
		return errors.New("predictor timeout cannot be negative")
	}
	if _, err := features.ParsePolicy(c.Predictor.ValidationPolicy); err != nil {
		return fmt.Errorf("predictor.validation_policy: %w", err)
	}

	if strings.TrimSpace(c.Session.Key) == "" {
		return errors.New("session key cannot be empty")
	}
	if strings.ContainsAny(c.Session.Key, `/\`) || c.Session.Key == "." || c.Session.Key == ".." {
		return fmt.Errorf("session key %q must not contain path separators", c.Session.Key)
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("ratelimit burst must be >= 1 when limiting is enabled, got %d", c.RateLimit.Burst)
	}

	return nil
}

// Policy returns the parsed validation policy. Validate must have passed.
func (c *Config) Policy() features.Policy {
	p, err := features.ParsePolicy(c.Predictor.ValidationPolicy)
	if err != nil {
		return features.PolicyCoerce
	}
	return p
}

// DefaultSessionDir returns ~/.config/pricecast/session.
func DefaultSessionDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "pricecast", "session"), nil
}

// HealthURL returns the configured health endpoint, or one derived from the
// prediction endpoint's scheme and host.
func (p PredictorConfig) HealthURL() string {
	if p.HealthEndpoint != "" {
		return p.HealthEndpoint
	}
	u, err := url.Parse(p.Endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/health"}).String()
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q in %q", u.Scheme, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
