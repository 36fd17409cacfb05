package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "9230", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, 2000, cfg.Trace.BufferCapacity)
	assert.Equal(t, "redacted", cfg.Trace.PayloadMode)
	assert.Equal(t, 100*time.Millisecond, cfg.Trace.BatchDelay)
	assert.Equal(t, 30*time.Second, cfg.Trace.InvokeTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 500, cfg.RateLimit.GlobalRequestsPerSecond)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	os.Setenv("TRACE_BUFFER_CAPACITY", "500")
	os.Setenv("TRACE_PAYLOAD_MODE", "full")
	os.Setenv("TRACE_BATCH_DELAY", "250ms")
	defer func() {
		os.Unsetenv("TRACE_BUFFER_CAPACITY")
		os.Unsetenv("TRACE_PAYLOAD_MODE")
		os.Unsetenv("TRACE_BATCH_DELAY")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Trace.BufferCapacity)
	assert.Equal(t, "full", cfg.Trace.PayloadMode)
	assert.Equal(t, 250*time.Millisecond, cfg.Trace.BatchDelay)
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	os.Setenv("TRACE_BUFFER_CAPACITY", "not-a-number")
	defer os.Unsetenv("TRACE_BUFFER_CAPACITY")

	cfg := LoadOrDefault()
	assert.Equal(t, 2000, cfg.Trace.BufferCapacity)
}
