package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// Duration wraps time.Duration so config files can spell intervals as
// "500ms" or "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete application configuration.
type Config struct {
	Version   string          `json:"version,omitempty" yaml:"version,omitempty"`
	HTTP      HTTPConfig      `json:"http" yaml:"http"`
	NATS      NATSConfig      `json:"nats" yaml:"nats"`
	Engine    EngineConfig    `json:"engine" yaml:"engine"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Hierarchy HierarchyConfig `json:"hierarchy" yaml:"hierarchy"`

	// Targets seeds the target store on startup. Targets created through
	// the API afterwards take precedence over this list.
	Targets []TargetSeed `json:"targets,omitempty" yaml:"targets,omitempty"`
}

// HTTPConfig configures the caller-facing HTTP service.
type HTTPConfig struct {
	Listen          string   `json:"listen" yaml:"listen"`
	ReadTimeout     Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	WriteTimeout    Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}

// NATSConfig configures the persistence connection.
type NATSConfig struct {
	URL           string   `json:"url" yaml:"url"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects,omitempty" yaml:"max_reconnects,omitempty"`
	ReconnectWait Duration `json:"reconnect_wait,omitempty" yaml:"reconnect_wait,omitempty"`
}

// EngineConfig tunes deployment behavior against remote instances.
type EngineConfig struct {
	// AwaitAttempts and AwaitInterval bound long-running remote update
	// polling.
	AwaitAttempts int      `json:"await_attempts,omitempty" yaml:"await_attempts,omitempty"`
	AwaitInterval Duration `json:"await_interval,omitempty" yaml:"await_interval,omitempty"`

	// RequestsPerSecond rate-limits calls against each remote instance.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
	RequestBurst      int     `json:"request_burst,omitempty" yaml:"request_burst,omitempty"`

	ClientTimeout Duration `json:"client_timeout,omitempty" yaml:"client_timeout,omitempty"`

	// InsecureSkipVerify disables TLS certificate verification toward
	// remote instances. Lab use only.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Format string `json:"format,omitempty" yaml:"format,omitempty"` // text, json
}

// HierarchyConfig names the organizational levels a target coordinate is
// made of, outermost first (e.g. region, datacenter, host).
type HierarchyConfig struct {
	Levels []string `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// TargetSeed is a remote target declared in the config file.
type TargetSeed struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	BaseURL       string   `json:"base_url" yaml:"base_url"`
	CredentialRef string   `json:"credential_ref,omitempty" yaml:"credential_ref,omitempty"`
	Hierarchy     []string `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`
	Description   string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Default returns a configuration with workable defaults for everything but
// the NATS URL and seed targets.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Listen:          ":8085",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Name:          "flowdeploy",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Engine: EngineConfig{
			AwaitAttempts:     30,
			AwaitInterval:     Duration(500 * time.Millisecond),
			RequestsPerSecond: 10,
			RequestBurst:      20,
			ClientTimeout:     Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.HTTP.Listen == "" {
		return fmt.Errorf("http.listen cannot be empty")
	}
	if c.NATS.URL == "" {
		return fmt.Errorf("nats.url cannot be empty")
	}
	if c.Engine.AwaitAttempts < 1 {
		return fmt.Errorf("engine.await_attempts must be at least 1, got %d", c.Engine.AwaitAttempts)
	}
	if c.Engine.AwaitInterval <= 0 {
		return fmt.Errorf("engine.await_interval must be positive")
	}
	if c.Engine.RequestsPerSecond <= 0 {
		return fmt.Errorf("engine.requests_per_second must be positive")
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Targets))
	for i, seed := range c.Targets {
		if seed.ID == "" {
			return fmt.Errorf("targets[%d]: id cannot be empty", i)
		}
		if seen[seed.ID] {
			return fmt.Errorf("targets[%d]: duplicate target id %q", i, seed.ID)
		}
		seen[seed.ID] = true
		parsed, err := url.Parse(seed.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("targets[%d]: base_url %q is not absolute", i, seed.BaseURL)
		}
		if len(c.Hierarchy.Levels) > 0 && len(seed.Hierarchy) > len(c.Hierarchy.Levels) {
			return fmt.Errorf("targets[%d]: hierarchy has %d levels, config defines %d",
				i, len(seed.Hierarchy), len(c.Hierarchy.Levels))
		}
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// SafeConfig provides thread-safe access to configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
