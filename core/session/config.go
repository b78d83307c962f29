package session

import (
	"fmt"
	"time"
)

// DefaultPollInterval is the delay between two snapshot fetches while solving.
const DefaultPollInterval = 2 * time.Second

// Config tunes the solve session.
type Config struct {
	// Interval between polls of the running job.
	Interval time.Duration `json:"interval"`
	// StopWhenNotSolving ends polling once the backend reports NOT_SOLVING.
	StopWhenNotSolving bool `json:"stop_when_not_solving"`
}

// SetDefaults applies the default poll interval.
func (c *Config) SetDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultPollInterval
	}
}

// Validate rejects non-positive intervals.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Interval)
	}
	return nil
}
