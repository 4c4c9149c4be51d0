package config

import (
	"fmt"
	"time"

	"github.com/poyuchen/tickbridge/internal/schedule"
)

// Config is the full bridge configuration, constructed once at startup and
// passed into every component.
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Session  SessionConfig  `yaml:"session"`
	Health   HealthConfig   `yaml:"health"`
}

// UpstreamConfig configures the vendor quote-feed session.
type UpstreamConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	Contract  string `yaml:"contract"` // catalogue path of the subscribed instrument
	Mode      string `yaml:"mode"`     // "simulation" or "production"
}

// KafkaConfig configures the downstream log endpoint.
type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

// MonitorConfig tunes the supervisor loop.
type MonitorConfig struct {
	Interval           time.Duration `yaml:"interval"`
	Timeout            time.Duration `yaml:"timeout"` // tick silence treated as critical
	MaxTimeoutRetries  int           `yaml:"max_timeout_retries"`
	DaySlowThreshold   time.Duration `yaml:"day_slow_threshold"`
	NightSlowThreshold time.Duration `yaml:"night_slow_threshold"`
}

// UnmarshalYAML accepts Go duration strings ("10s", "5m") for the duration
// fields; yaml.v3 has no native time.Duration support.
func (m *MonitorConfig) UnmarshalYAML(unmarshal func(any) error) error {
	var raw struct {
		Interval           string `yaml:"interval"`
		Timeout            string `yaml:"timeout"`
		MaxTimeoutRetries  int    `yaml:"max_timeout_retries"`
		DaySlowThreshold   string `yaml:"day_slow_threshold"`
		NightSlowThreshold string `yaml:"night_slow_threshold"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parse := func(field, s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("monitor.%s: %w", field, err)
		}
		*dst = d
		return nil
	}

	m.MaxTimeoutRetries = raw.MaxTimeoutRetries
	if err := parse("interval", raw.Interval, &m.Interval); err != nil {
		return err
	}
	if err := parse("timeout", raw.Timeout, &m.Timeout); err != nil {
		return err
	}
	if err := parse("day_slow_threshold", raw.DaySlowThreshold, &m.DaySlowThreshold); err != nil {
		return err
	}
	return parse("night_slow_threshold", raw.NightSlowThreshold, &m.NightSlowThreshold)
}

// SessionConfig describes the exchange trading windows as "HH:MM" wall-clock
// times in the exchange zone.
type SessionConfig struct {
	DayOpen    string `yaml:"day_open"`
	DayClose   string `yaml:"day_close"`
	NightOpen  string `yaml:"night_open"`
	NightClose string `yaml:"night_close"`
	Timezone   string `yaml:"timezone"`
}

// HealthConfig configures the health HTTP endpoint.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// Hours builds the schedule value from the session configuration. The
// session buffer is derived from the monitor interval: 2 × interval on each
// side of every open and close.
func (c *Config) Hours() (schedule.Hours, error) {
	loc, err := time.LoadLocation(c.Session.Timezone)
	if err != nil {
		return schedule.Hours{}, fmt.Errorf("load timezone %q: %w", c.Session.Timezone, err)
	}

	parse := func(field, s string) (schedule.TimeOfDay, error) {
		var hh, mm int
		if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
			return 0, fmt.Errorf("session.%s: %q is not HH:MM", field, s)
		}
		if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
			return 0, fmt.Errorf("session.%s: %q is out of range", field, s)
		}
		return schedule.At(hh, mm), nil
	}

	h := schedule.Hours{
		Buffer:         2 * c.Monitor.Interval,
		DayThreshold:   c.Monitor.DaySlowThreshold,
		NightThreshold: c.Monitor.NightSlowThreshold,
		Location:       loc,
	}
	if h.DayOpen, err = parse("day_open", c.Session.DayOpen); err != nil {
		return schedule.Hours{}, err
	}
	if h.DayClose, err = parse("day_close", c.Session.DayClose); err != nil {
		return schedule.Hours{}, err
	}
	if h.NightOpen, err = parse("night_open", c.Session.NightOpen); err != nil {
		return schedule.Hours{}, err
	}
	if h.NightClose, err = parse("night_close", c.Session.NightClose); err != nil {
		return schedule.Hours{}, err
	}
	return h, nil
}
