package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty listen", mutate: func(c *Config) { c.HTTP.Listen = "" }, wantErr: "http.listen"},
		{name: "empty nats url", mutate: func(c *Config) { c.NATS.URL = "" }, wantErr: "nats.url"},
		{name: "zero await attempts", mutate: func(c *Config) { c.Engine.AwaitAttempts = 0 }, wantErr: "await_attempts"},
		{name: "negative await interval", mutate: func(c *Config) { c.Engine.AwaitInterval = -1 }, wantErr: "await_interval"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: "logging.level"},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
		{
			name: "duplicate target ids",
			mutate: func(c *Config) {
				c.Targets = []TargetSeed{
					{ID: "t1", Name: "a", BaseURL: "https://a.example.com"},
					{ID: "t1", Name: "b", BaseURL: "https://b.example.com"},
				}
			},
			wantErr: "duplicate",
		},
		{
			name: "relative target url",
			mutate: func(c *Config) {
				c.Targets = []TargetSeed{{ID: "t1", Name: "a", BaseURL: "not-a-url"}}
			},
			wantErr: "base_url",
		},
		{
			name: "target hierarchy deeper than scheme",
			mutate: func(c *Config) {
				c.Hierarchy.Levels = []string{"region"}
				c.Targets = []TargetSeed{{
					ID: "t1", Name: "a", BaseURL: "https://a.example.com",
					Hierarchy: []string{"east", "dc01"},
				}}
			},
			wantErr: "hierarchy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	cfg := Default()
	cfg.Hierarchy.Levels = []string{"region", "dc"}

	clone := cfg.Clone()
	clone.Hierarchy.Levels[0] = "changed"
	clone.HTTP.Listen = ":9999"

	assert.Equal(t, "region", cfg.Hierarchy.Levels[0])
	assert.Equal(t, ":8085", cfg.HTTP.Listen)
}

func TestSafeConfig(t *testing.T) {
	sc := NewSafeConfig(Default())

	got := sc.Get()
	got.HTTP.Listen = ":1"
	assert.Equal(t, ":8085", sc.Get().HTTP.Listen, "Get must hand out copies")

	next := Default()
	next.HTTP.Listen = ":9090"
	require.NoError(t, sc.Update(next))
	assert.Equal(t, ":9090", sc.Get().HTTP.Listen)

	bad := Default()
	bad.HTTP.Listen = ""
	require.Error(t, sc.Update(bad))
	assert.Equal(t, ":9090", sc.Get().HTTP.Listen, "failed update must not apply")

	require.Error(t, sc.Update(nil))
}

func TestLoadFromFile(t *testing.T) {
	raw := `
http:
  listen: ":9000"
  read_timeout: 5s
nats:
  url: nats://nats.internal:4222
engine:
  await_attempts: 12
  await_interval: 250ms
hierarchy:
  levels: [region, datacenter, host]
targets:
  - id: east-1
    name: east-dc01
    base_url: https://nifi-east.example.com:8443/nifi-api
    hierarchy: [east, dc01, host1]
`
	path := filepath.Join(t.TempDir(), "flowdeploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Listen)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout.Std())
	assert.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)
	assert.Equal(t, 12, cfg.Engine.AwaitAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.AwaitInterval.Std())
	// File values merge over defaults; untouched fields keep them.
	assert.Equal(t, 60*time.Second, cfg.HTTP.WriteTimeout.Std())
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, []string{"east", "dc01", "host1"}, cfg.Targets[0].Hierarchy)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvHTTPListen, ":7777")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvAwaitAttempts, "3")
	t.Setenv(EnvAwaitInterval, "2s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.HTTP.Listen)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Engine.AwaitAttempts)
	assert.Equal(t, 2*time.Second, cfg.Engine.AwaitInterval.Std())
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv(EnvAwaitAttempts, "not-a-number")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/no/such/config.yaml")
	require.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: ["), 0o600))
	_, err := Load(path)
	require.Error(t, err)
}

func TestDurationRoundTrip(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(data))
}
