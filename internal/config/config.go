// Package config provides 12-factor configuration for the trace layer.
//
// Configuration is loaded from environment variables with sensible
// defaults; CLI flags can override individual values at startup.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all trace-layer configuration.
type Config struct {
	Server    ServerConfig
	Trace     TraceConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds viewer HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"9230"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// TraceConfig holds capture and delivery configuration.
type TraceConfig struct {
	BufferCapacity  int           `envconfig:"TRACE_BUFFER_CAPACITY" default:"2000"`
	PayloadMode     string        `envconfig:"TRACE_PAYLOAD_MODE" default:"redacted"`
	PreviewMaxBytes int           `envconfig:"TRACE_PREVIEW_MAX_BYTES" default:"16384"`
	BatchSize       int           `envconfig:"TRACE_BATCH_SIZE" default:"50"`
	BatchDelay      time.Duration `envconfig:"TRACE_BATCH_DELAY" default:"100ms"`
	InvokeTimeout   time.Duration `envconfig:"TRACE_INVOKE_TIMEOUT" default:"30s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds control-surface rate limiting configuration.
// The per-IP limits bound a single client; the global limits cap the
// whole surface.
type RateLimitConfig struct {
	RequestsPerSecond       int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst                   int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	GlobalRequestsPerSecond int  `envconfig:"RATE_LIMIT_GLOBAL_RPS" default:"500"`
	GlobalBurst             int  `envconfig:"RATE_LIMIT_GLOBAL_BURST" default:"1000"`
	Enabled                 bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "9230",
			Host: "127.0.0.1",
		},
		Trace: TraceConfig{
			BufferCapacity:  2000,
			PayloadMode:     "redacted",
			PreviewMaxBytes: 16384,
			BatchSize:       50,
			BatchDelay:      100 * time.Millisecond,
			InvokeTimeout:   30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:       100,
			Burst:                   200,
			GlobalRequestsPerSecond: 500,
			GlobalBurst:             1000,
			Enabled:                 true,
		},
	}
}
