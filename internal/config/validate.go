package config

import (
	"errors"
	"fmt"
)

// ErrMissingCredential marks a startup configuration failure the process
// must exit on.
var ErrMissingCredential = errors.New("missing credential")

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Upstream.APIKey == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, EnvAPIKey)
	}
	if c.Upstream.SecretKey == "" {
		return fmt.Errorf("%w: %s is not set", ErrMissingCredential, EnvSecretKey)
	}

	if c.Upstream.Mode != "simulation" && c.Upstream.Mode != "production" {
		return fmt.Errorf("upstream.mode must be simulation or production, got %q", c.Upstream.Mode)
	}

	if c.Kafka.Broker == "" {
		return fmt.Errorf("kafka broker is required (set %s)", EnvBroker)
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required (set %s)", EnvTopic)
	}

	if c.Monitor.Interval <= 0 {
		return errors.New("monitor.interval must be > 0")
	}
	if c.Monitor.Timeout <= 0 {
		return errors.New("monitor.timeout must be > 0")
	}
	if c.Monitor.MaxTimeoutRetries < 1 {
		return errors.New("monitor.max_timeout_retries must be >= 1")
	}
	if c.Monitor.DaySlowThreshold <= 0 || c.Monitor.NightSlowThreshold <= 0 {
		return errors.New("monitor slow-tick thresholds must be > 0")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	// Session times and timezone must parse.
	if _, err := c.Hours(); err != nil {
		return err
	}

	return nil
}
