package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variable overrides. A set variable wins over the file value.
const (
	EnvHTTPListen = "FLOWDEPLOY_HTTP_LISTEN"
	EnvNATSURL    = "FLOWDEPLOY_NATS_URL"
	EnvLogLevel   = "FLOWDEPLOY_LOG_LEVEL"
	EnvLogFormat  = "FLOWDEPLOY_LOG_FORMAT"

	EnvAwaitAttempts = "FLOWDEPLOY_AWAIT_ATTEMPTS"
	EnvAwaitInterval = "FLOWDEPLOY_AWAIT_INTERVAL"

	// Credentials are environment-only: they never appear in config files.
	EnvUsername = "FLOWDEPLOY_USERNAME"
	EnvPassword = "FLOWDEPLOY_PASSWORD"
	EnvToken    = "FLOWDEPLOY_TOKEN"
)

// Load reads a YAML config file, layers environment overrides on top of the
// defaults and file values, and validates the result. An empty path loads
// defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvHTTPListen); v != "" {
		cfg.HTTP.Listen = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv(EnvAwaitAttempts); v != "" {
		attempts, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAwaitAttempts, err)
		}
		cfg.Engine.AwaitAttempts = attempts
	}
	if v := os.Getenv(EnvAwaitInterval); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAwaitInterval, err)
		}
		cfg.Engine.AwaitInterval = Duration(interval)
	}
	return nil
}

// Credentials reads the remote login material from the environment.
func Credentials() (username, password, token string) {
	return os.Getenv(EnvUsername), os.Getenv(EnvPassword), os.Getenv(EnvToken)
}
