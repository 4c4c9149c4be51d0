package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultContract           = "Futures/TXF/TXFR1"
	DefaultUpstreamMode       = "simulation"
	DefaultMonitorInterval    = 10 * time.Second
	DefaultTimeout            = 300 * time.Second
	DefaultMaxTimeoutRetries  = 3
	DefaultDaySlowThreshold   = 60 * time.Second
	DefaultNightSlowThreshold = 180 * time.Second
	DefaultDayOpen            = "08:30"
	DefaultDayClose           = "13:45"
	DefaultNightOpen          = "14:50"
	DefaultNightClose         = "05:00"
	DefaultTimezone           = "Asia/Taipei"
	DefaultHealthPort         = 8080
)

func (c *Config) applyDefaults() {
	if c.Upstream.Contract == "" {
		c.Upstream.Contract = DefaultContract
	}
	if c.Upstream.Mode == "" {
		c.Upstream.Mode = DefaultUpstreamMode
	}

	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultMonitorInterval
	}
	if c.Monitor.Timeout == 0 {
		c.Monitor.Timeout = DefaultTimeout
	}
	if c.Monitor.MaxTimeoutRetries == 0 {
		c.Monitor.MaxTimeoutRetries = DefaultMaxTimeoutRetries
	}
	if c.Monitor.DaySlowThreshold == 0 {
		c.Monitor.DaySlowThreshold = DefaultDaySlowThreshold
	}
	if c.Monitor.NightSlowThreshold == 0 {
		c.Monitor.NightSlowThreshold = DefaultNightSlowThreshold
	}

	if c.Session.DayOpen == "" {
		c.Session.DayOpen = DefaultDayOpen
	}
	if c.Session.DayClose == "" {
		c.Session.DayClose = DefaultDayClose
	}
	if c.Session.NightOpen == "" {
		c.Session.NightOpen = DefaultNightOpen
	}
	if c.Session.NightClose == "" {
		c.Session.NightClose = DefaultNightClose
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = DefaultTimezone
	}

	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}
