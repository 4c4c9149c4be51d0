package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvAPIKey, "test-key")
	t.Setenv(EnvSecretKey, "test-secret")
	t.Setenv(EnvBroker, "localhost:9092")
	t.Setenv(EnvTopic, "txf-ticks")
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadFromEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Upstream.APIKey != "test-key" {
		t.Errorf("Upstream.APIKey = %q, want %q", cfg.Upstream.APIKey, "test-key")
	}
	if cfg.Kafka.Broker != "localhost:9092" {
		t.Errorf("Kafka.Broker = %q, want %q", cfg.Kafka.Broker, "localhost:9092")
	}
	if cfg.Monitor.Interval != DefaultMonitorInterval {
		t.Errorf("Monitor.Interval = %v, want default %v", cfg.Monitor.Interval, DefaultMonitorInterval)
	}
	if cfg.Session.Timezone != "Asia/Taipei" {
		t.Errorf("Session.Timezone = %q, want Asia/Taipei", cfg.Session.Timezone)
	}
	if cfg.Upstream.Contract != DefaultContract {
		t.Errorf("Upstream.Contract = %q, want %q", cfg.Upstream.Contract, DefaultContract)
	}
}

func TestLoadYAMLOverrides(t *testing.T) {
	setRequiredEnv(t)

	yaml := `
monitor:
  interval: 5s
  timeout: 120s
  night_slow_threshold: 240s
session:
  night_close: "06:00"
health:
  port: 9101
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Monitor.Interval != 5*time.Second {
		t.Errorf("Monitor.Interval = %v, want 5s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.Timeout != 120*time.Second {
		t.Errorf("Monitor.Timeout = %v, want 120s", cfg.Monitor.Timeout)
	}
	if cfg.Session.NightClose != "06:00" {
		t.Errorf("Session.NightClose = %q, want 06:00", cfg.Session.NightClose)
	}
	if cfg.Health.Port != 9101 {
		t.Errorf("Health.Port = %d, want 9101", cfg.Health.Port)
	}
	// Untouched fields still get defaults.
	if cfg.Monitor.DaySlowThreshold != DefaultDaySlowThreshold {
		t.Errorf("Monitor.DaySlowThreshold = %v, want default", cfg.Monitor.DaySlowThreshold)
	}
}

func TestLoadEnvSubstitutionInYAML(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TEST_CONTRACT", "Futures/MXF/MXFR1")

	yaml := `
upstream:
  contract: ${TEST_CONTRACT}
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Upstream.Contract != "Futures/MXF/MXFR1" {
		t.Errorf("Upstream.Contract = %q, want expanded env value", cfg.Upstream.Contract)
	}
}

func TestValidateMissingCredential(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvSecretKey, "")

	_, err := LoadAndValidate("")
	if !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("LoadAndValidate error = %v, want ErrMissingCredential", err)
	}
}

func TestValidateMissingBroker(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvBroker, "")

	if _, err := LoadAndValidate(""); err == nil {
		t.Fatal("LoadAndValidate succeeded without a broker")
	}
}

func TestValidateBadMode(t *testing.T) {
	setRequiredEnv(t)

	path := writeTempFile(t, "upstream:\n  mode: paper\n")
	if _, err := LoadAndValidate(path); err == nil {
		t.Fatal("LoadAndValidate accepted an unknown upstream mode")
	}
}

func TestDefaultModeIsSimulation(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Upstream.Mode != "simulation" {
		t.Errorf("Upstream.Mode = %q, want simulation", cfg.Upstream.Mode)
	}
}

func TestValidateBadSessionTime(t *testing.T) {
	setRequiredEnv(t)

	path := writeTempFile(t, "session:\n  day_open: \"8am\"\n")
	if _, err := LoadAndValidate(path); err == nil {
		t.Fatal("LoadAndValidate accepted a malformed session time")
	}
}

func TestHours(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	hours, err := cfg.Hours()
	if err != nil {
		t.Fatalf("Hours failed: %v", err)
	}

	if hours.Buffer != 2*cfg.Monitor.Interval {
		t.Errorf("Buffer = %v, want %v", hours.Buffer, 2*cfg.Monitor.Interval)
	}
	if hours.DayOpen >= hours.DayClose {
		t.Errorf("DayOpen %v not before DayClose %v", hours.DayOpen, hours.DayClose)
	}
	// Default night session wraps midnight.
	if hours.NightOpen <= hours.NightClose {
		t.Errorf("night session should wrap midnight: open %v, close %v", hours.NightOpen, hours.NightClose)
	}
}
