package solverapi

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kilianp07/beamtime/auth"
)

// Config holds the backend connection settings.
type Config struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
	// Dataset is the demo dataset loaded when none is given on the command
	// line. Empty selects the first one offered by the backend.
	Dataset string        `json:"dataset"`
	Auth    auth.Conf     `json:"auth"`
	Breaker BreakerConfig `json:"breaker"`
}

// BreakerConfig enables a circuit breaker in front of the backend. While
// open, requests fail immediately without reaching the network.
type BreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	FailureThreshold uint32        `json:"failure_threshold"`
	OpenTimeout      time.Duration `json:"open_timeout"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.OpenTimeout == 0 {
		c.Breaker.OpenTimeout = 30 * time.Second
	}
}

// Validate checks the base URL and timeouts.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("backend base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend base_url must be http or https, got %q", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}
	return nil
}
