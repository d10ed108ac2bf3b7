package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pricecast/internal/config"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "pricecast", cfg.ServiceName)
	assert.Equal(t, ProtocolGRPC, cfg.Protocol)
	assert.Equal(t, 15*time.Second, cfg.ExportInterval.Duration())
	require.NoError(t, cfg.Validate())
}

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{}
	app.Observability.EnableTelemetry = true
	app.Observability.ServiceName = "pricecastd"
	app.Observability.OTLPEndpoint = "https://otel.example.com:4318"

	cfg := FromAppConfig(app, "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "pricecastd", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, ProtocolHTTP, cfg.Protocol)
	assert.False(t, cfg.Insecure)
	require.NoError(t, cfg.Validate())
}

func TestFromAppConfig_KeepsDefaults(t *testing.T) {
	cfg := FromAppConfig(&config.Config{}, "")

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "pricecast", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"disabled skips checks", func(c *Config) { c.Enabled = false; c.Endpoint = "" }, ""},
		{"enabled default", func(c *Config) { c.Enabled = true }, ""},
		{"missing endpoint", func(c *Config) { c.Enabled = true; c.Endpoint = "" }, "endpoint is required"},
		{"missing service", func(c *Config) { c.Enabled = true; c.ServiceName = "" }, "service_name is required"},
		{"bad protocol", func(c *Config) { c.Enabled = true; c.Protocol = "thrift" }, "unsupported protocol"},
		{"insecure remote", func(c *Config) { c.Enabled = true; c.Endpoint = "otel.example.com:4317" }, "insecure connections"},
		{"insecure loopback ip", func(c *Config) { c.Enabled = true; c.Endpoint = "127.0.0.1:4317" }, ""},
		{"insecure ipv6 loopback", func(c *Config) { c.Enabled = true; c.Endpoint = "[::1]:4317" }, ""},
		{"secure remote", func(c *Config) { c.Enabled = true; c.Insecure = false; c.Endpoint = "otel.example.com:4317" }, ""},
		{"sample rate too high", func(c *Config) { c.Enabled = true; c.SampleRate = 1.5 }, "sample_rate"},
		{"zero interval", func(c *Config) { c.Enabled = true; c.ExportInterval = 0 }, "export_interval"},
		{"zero interval without metrics", func(c *Config) { c.Enabled = true; c.Metrics = false; c.ExportInterval = 0 }, ""},
		{"zero shutdown", func(c *Config) { c.Enabled = true; c.ShutdownAfter = 0 }, "shutdown_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "localhost:4318", stripScheme("http://localhost:4318"))
	assert.Equal(t, "otel.example.com", stripScheme("https://otel.example.com"))
	assert.Equal(t, "localhost:4317", stripScheme("localhost:4317"))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}
