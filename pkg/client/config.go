package client

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// FileConfig is the YAML structure of an event source config file.
type FileConfig struct {
	// URL is the SSE endpoint.
	URL string `yaml:"url"`

	// Headers are set on every connection attempt. Values may
	// reference environment variables, e.g.
	// Authorization: "Bearer ${API_TOKEN}".
	Headers map[string]string `yaml:"headers"`

	// LastEventID seeds the Last-Event-ID header, resuming a stream
	// observed in an earlier run.
	LastEventID string `yaml:"last_event_id"`

	// InitialRetryMS is the first reconnect delay in milliseconds
	// (0 = 3000). A server retry field overrides it.
	InitialRetryMS int `yaml:"initial_retry_ms"`

	// MaxRetryMS caps the exponential backoff (0 = 30000).
	MaxRetryMS int `yaml:"max_retry_ms"`

	// RetryMultiplier is the backoff growth factor (0 = 1.5).
	RetryMultiplier float64 `yaml:"retry_multiplier"`

	// MaxAttempts gives up after this many consecutive failed
	// connection attempts (0 = never give up).
	MaxAttempts int `yaml:"max_attempts"`
}

// LoadFileConfig reads and parses a YAML config file, expanding
// ${ENV_VAR} references in string values.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("client: read %s: %w", path, err)
	}

	// Expand environment variables in the raw YAML before parsing.
	expanded := os.ExpandEnv(string(data))

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("client: parse %s: %w", path, err)
	}

	if err := validateFileConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validateFileConfig(cfg *FileConfig) error {
	if cfg.URL == "" {
		return fmt.Errorf("client: url is required")
	}
	if cfg.InitialRetryMS < 0 || cfg.MaxRetryMS < 0 || cfg.MaxAttempts < 0 {
		return fmt.Errorf("client: retry settings must be non-negative")
	}
	return nil
}

// NewEventSource builds an EventSource from the config.
func (c *FileConfig) NewEventSource() (*EventSource, error) {
	req, err := http.NewRequest(http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}

	initial := defaultInitialRetry
	if c.InitialRetryMS > 0 {
		initial = time.Duration(c.InitialRetryMS) * time.Millisecond
	}
	max := defaultMaxRetry
	if c.MaxRetryMS > 0 {
		max = time.Duration(c.MaxRetryMS) * time.Millisecond
	}
	multiplier := defaultMultiplier
	if c.RetryMultiplier > 0 {
		multiplier = c.RetryMultiplier
	}

	es := New(req)
	es.Policy = NewBackoff(initial, max, multiplier, c.MaxAttempts)
	es.SetLastEventID(c.LastEventID)
	return es, nil
}
