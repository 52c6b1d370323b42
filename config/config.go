// Package config provides runtime configuration for the envelope exchange:
// broker location, queue naming, filesystem drop directories, and the
// timing knobs of the correlation and polling layers.
//
// Values come from defaults, an optional env file, or a map. Nothing in
// this package reads os.Getenv directly; process bootstrap decides which
// source wins and injects the result.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the full runtime configuration for one exchange process,
// whether it plays the server or the agent role.
type Config struct {
	// Broker
	BrokerURL   string `json:"broker_url"`
	QueuePrefix string `json:"queue_prefix"`

	// Filesystem drop directories
	BaseDir     string `json:"base_dir"`
	MessageDir  string `json:"message_dir"`  // raw received documents
	DecodedDir  string `json:"decoded_dir"`  // decoded payloads
	OutgoingDir string `json:"outgoing_dir"` // documents awaiting send

	// Timing (seconds)
	RequestTimeout int `json:"request_timeout"` // correlation window per request
	PollInterval   int `json:"poll_interval"`   // scheduler beat
	IdempotencyTTL int `json:"idempotency_ttl"` // seen-id retention

	// Logging
	LogLevel string `json:"log_level"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BrokerURL:   "redis://localhost:6379/0",
		QueuePrefix: "agentwire:queue:",

		BaseDir:     "msgs",
		MessageDir:  "messages",
		DecodedDir:  "decoded",
		OutgoingDir: "outgoing",

		RequestTimeout: 30,
		PollInterval:   5,
		IdempotencyTTL: 3600,

		LogLevel: "INFO",
	}
}

// RequestTimeoutDuration returns the correlation window as a Duration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// PollIntervalDuration returns the scheduler beat as a Duration.
func (c *Config) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// IdempotencyTTLDuration returns the seen-id retention as a Duration.
func (c *Config) IdempotencyTTLDuration() time.Duration {
	return time.Duration(c.IdempotencyTTL) * time.Second
}

// MessagePath returns the absolute drop directory for raw documents.
func (c *Config) MessagePath() string {
	return filepath.Join(c.BaseDir, c.MessageDir)
}

// DecodedPath returns the absolute drop directory for decoded payloads.
func (c *Config) DecodedPath() string {
	return filepath.Join(c.BaseDir, c.DecodedDir)
}

// OutgoingPath returns the absolute drop directory for unsent documents.
func (c *Config) OutgoingPath() string {
	return filepath.Join(c.BaseDir, c.OutgoingDir)
}

// CreateDirs creates the drop directories if they do not exist.
func (c *Config) CreateDirs() error {
	for _, dir := range []string{c.MessagePath(), c.DecodedPath(), c.OutgoingPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return fmt.Errorf("broker_url must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %d", c.RequestTimeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %d", c.PollInterval)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("idempotency_ttl must be positive, got %d", c.IdempotencyTTL)
	}
	return nil
}

// FromMap creates a Config from a map. Unknown keys are ignored.
func FromMap(values map[string]any) *Config {
	c := DefaultConfig()

	if v, ok := values["broker_url"].(string); ok {
		c.BrokerURL = v
	}
	if v, ok := values["queue_prefix"].(string); ok {
		c.QueuePrefix = v
	}
	if v, ok := values["base_dir"].(string); ok {
		c.BaseDir = v
	}
	if v, ok := values["message_dir"].(string); ok {
		c.MessageDir = v
	}
	if v, ok := values["decoded_dir"].(string); ok {
		c.DecodedDir = v
	}
	if v, ok := values["outgoing_dir"].(string); ok {
		c.OutgoingDir = v
	}
	if v, ok := values["request_timeout"].(int); ok {
		c.RequestTimeout = v
	} else if v, ok := values["request_timeout"].(float64); ok {
		c.RequestTimeout = int(v)
	}
	if v, ok := values["poll_interval"].(int); ok {
		c.PollInterval = v
	} else if v, ok := values["poll_interval"].(float64); ok {
		c.PollInterval = int(v)
	}
	if v, ok := values["idempotency_ttl"].(int); ok {
		c.IdempotencyTTL = v
	} else if v, ok := values["idempotency_ttl"].(float64); ok {
		c.IdempotencyTTL = int(v)
	}
	if v, ok := values["log_level"].(string); ok {
		c.LogLevel = v
	}

	return c
}

// ToMap converts the config to a map.
func (c *Config) ToMap() map[string]any {
	return map[string]any{
		"broker_url":      c.BrokerURL,
		"queue_prefix":    c.QueuePrefix,
		"base_dir":        c.BaseDir,
		"message_dir":     c.MessageDir,
		"decoded_dir":     c.DecodedDir,
		"outgoing_dir":    c.OutgoingDir,
		"request_timeout": c.RequestTimeout,
		"poll_interval":   c.PollInterval,
		"idempotency_ttl": c.IdempotencyTTL,
		"log_level":       c.LogLevel,
	}
}

// FromEnvFile loads a Config from a KEY=VALUE file. Keys are the upper-case
// forms of the map keys (BROKER_URL, POLL_INTERVAL and so on). Blank lines
// and lines starting with # are skipped. Missing keys keep their defaults.
func FromEnvFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	values := make(map[string]any)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("env file %s line %d: expected KEY=VALUE", path, lineNo)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if n, err := strconv.Atoi(value); err == nil {
			values[key] = n
		} else {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}

	return FromMap(values), nil
}

// =============================================================================
// GLOBAL CONFIG (set by process bootstrap)
// =============================================================================

var (
	globalConfig *Config
	configMu     sync.RWMutex
)

// GetConfig gets the configuration instance.
// Returns the injected config or defaults.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()

	if globalConfig == nil {
		return DefaultConfig()
	}
	return globalConfig
}

// SetConfig sets the configuration instance.
// Called by process bootstrap after loading the env file.
func SetConfig(c *Config) {
	configMu.Lock()
	defer configMu.Unlock()

	globalConfig = c
}

// ResetConfig resets config to nil (useful for testing).
// After reset, GetConfig() will return defaults.
func ResetConfig() {
	configMu.Lock()
	defer configMu.Unlock()

	globalConfig = nil
}
