package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()

	assert.Equal(t, "redis://localhost:6379/0", c.BrokerURL)
	assert.Equal(t, "agentwire:queue:", c.QueuePrefix)
	assert.Equal(t, "msgs", c.BaseDir)
	assert.Equal(t, 30, c.RequestTimeout)
	assert.Equal(t, 5, c.PollInterval)
	assert.Equal(t, 3600, c.IdempotencyTTL)
	assert.Equal(t, "INFO", c.LogLevel)
	assert.NoError(t, c.Validate())
}

func TestFromMapOverrides(t *testing.T) {
	c := FromMap(map[string]any{
		"broker_url":      "redis://broker:6379/1",
		"poll_interval":   10,
		"request_timeout": float64(60),
		"log_level":       "DEBUG",
		"unknown_key":     "ignored",
	})

	assert.Equal(t, "redis://broker:6379/1", c.BrokerURL)
	assert.Equal(t, 10, c.PollInterval)
	assert.Equal(t, 60, c.RequestTimeout)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, "msgs", c.BaseDir, "untouched keys keep defaults")
}

func TestMapRoundTrip(t *testing.T) {
	c := DefaultConfig()
	c.BrokerURL = "redis://elsewhere:6379/2"
	c.IdempotencyTTL = 120

	restored := FromMap(c.ToMap())
	assert.Equal(t, c, restored)
}

func TestDurationAccessors(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, "30s", c.RequestTimeoutDuration().String())
	assert.Equal(t, "5s", c.PollIntervalDuration().String())
	assert.Equal(t, "1h0m0s", c.IdempotencyTTLDuration().String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty_broker", func(c *Config) { c.BrokerURL = "" }},
		{"zero_timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"negative_poll", func(c *Config) { c.PollInterval = -1 }},
		{"zero_ttl", func(c *Config) { c.IdempotencyTTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestCreateDirs(t *testing.T) {
	c := DefaultConfig()
	c.BaseDir = filepath.Join(t.TempDir(), "drop")

	require.NoError(t, c.CreateDirs())
	for _, dir := range []string{c.MessagePath(), c.DecodedPath(), c.OutgoingPath()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent on existing directories.
	assert.NoError(t, c.CreateDirs())
}

func TestFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exchange.env")
	content := `# broker settings
BROKER_URL="redis://envfile:6379/0"
POLL_INTERVAL=7

LOG_LEVEL=DEBUG
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := FromEnvFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://envfile:6379/0", c.BrokerURL)
	assert.Equal(t, 7, c.PollInterval)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, 30, c.RequestTimeout, "missing keys keep defaults")
}

func TestFromEnvFileMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("BROKER_URL\n"), 0o644))

	_, err := FromEnvFile(path)
	assert.Error(t, err)
}

func TestFromEnvFileMissing(t *testing.T) {
	_, err := FromEnvFile(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestGlobalConfig(t *testing.T) {
	defer ResetConfig()

	assert.Equal(t, DefaultConfig(), GetConfig())

	custom := DefaultConfig()
	custom.LogLevel = "DEBUG"
	SetConfig(custom)
	assert.Same(t, custom, GetConfig())

	ResetConfig()
	assert.Equal(t, DefaultConfig(), GetConfig())
}
