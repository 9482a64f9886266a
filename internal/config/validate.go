package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Conflicts.Policy {
	case "ask", "same", "different":
	default:
		return fmt.Errorf("conflicts.policy must be one of ask, same, different (got %q)", c.Conflicts.Policy)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	if c.Retry.BaseDelayMS > c.Retry.MaxDelayMS {
		return errors.New("retry.base_delay_ms must not exceed retry.max_delay_ms")
	}
	if c.Drive.RateLimitPerSec < 0 || c.Photos.RateLimitPerSec < 0 {
		return errors.New("rate_limit_per_sec must not be negative")
	}
	return nil
}
