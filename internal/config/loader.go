package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variable names. Credentials and endpoints come from the
// environment so they never land in a config file.
const (
	EnvAPIKey    = "SHIOAJI_API_KEY"
	EnvSecretKey = "SHIOAJI_SECRET_KEY"
	EnvBroker    = "KAFKA_BROKER"
	EnvTopic     = "KAFKA_TOPIC"
)

// Load reads configuration: a .env file if present, then the optional YAML
// tuning file at path (empty = none, with ${VAR} expansion), then
// environment overrides.
func Load(path string) (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Upstream.APIKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		c.Upstream.SecretKey = v
	}
	if v := os.Getenv(EnvBroker); v != "" {
		c.Kafka.Broker = v
	}
	if v := os.Getenv(EnvTopic); v != "" {
		c.Kafka.Topic = v
	}
}
