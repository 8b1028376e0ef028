package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StrategyWeb, cfg.Strategy)
	assert.Equal(t, "https://claude.ai/api", cfg.Web.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.Web.Timeout)
	assert.True(t, cfg.Web.FetchOverage)
	assert.Equal(t, []string{"/usage"}, cfg.CLI.Args)
	assert.Equal(t, 45*time.Second, cfg.CLI.HardTimeout)
	assert.Equal(t, "Current session", cfg.CLI.PrimaryMarker)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Monitor.Interval)
	assert.Equal(t, ".claude-session-key", filepath.Base(cfg.Credential.Path))
	assert.Equal(t, []string{"~/.claude/projects", "~/.config/claude/projects"}, cfg.Activity.Dirs)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid default config", func(c *Config) {}, nil},
		{"cli strategy", func(c *Config) { c.Strategy = StrategyCLI }, nil},
		{"zero retention keeps everything", func(c *Config) { c.History.Retention = 0 }, nil},
		{"unknown strategy", func(c *Config) { c.Strategy = "scrape" }, ErrInvalidStrategy},
		{"empty credential path", func(c *Config) { c.Credential.Path = "" }, ErrEmptyCredentialPath},
		{"base url without scheme", func(c *Config) { c.Web.BaseURL = "claude.ai/api" }, ErrInvalidBaseURL},
		{"base url ftp", func(c *Config) { c.Web.BaseURL = "ftp://claude.ai" }, ErrInvalidBaseURL},
		{"zero web timeout", func(c *Config) { c.Web.Timeout = 0 }, ErrInvalidWebTimeout},
		{"empty binary", func(c *Config) { c.CLI.Binary = "" }, ErrEmptyBinary},
		{"zero hard timeout", func(c *Config) { c.CLI.HardTimeout = 0 }, ErrInvalidCLITimeout},
		{"zero marker timeout", func(c *Config) { c.CLI.MarkerTimeout = 0 }, ErrInvalidCLITimeout},
		{"negative delay", func(c *Config) { c.CLI.SecondaryDelay = -time.Second }, ErrInvalidCLITimeout},
		{"empty db path", func(c *Config) { c.History.DBPath = "" }, ErrEmptyDBPath},
		{"negative retention", func(c *Config) { c.History.Retention = -time.Hour }, ErrInvalidRetention},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, ErrEmptyAddr},
		{"display format", func(c *Config) { c.Display.DefaultFormat = "live" }, ErrInvalidDisplayFormat},
		{"zero interval", func(c *Config) { c.Monitor.Interval = 0 }, ErrInvalidInterval},
		{"no activity dirs", func(c *Config) { c.Activity.Dirs = nil }, ErrEmptyActivityDirs},
		{"zero concurrency", func(c *Config) { c.Activity.Concurrency = 0 }, ErrInvalidConcurrency},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, ErrInvalidLogFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
strategy: cli
cli:
  binary: /opt/claude/bin/claude
  args: ["/usage", "--plain"]
  hard_timeout: 1m
display:
  color_enabled: false
`)

	cfg, err := NewLoader(path).LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, StrategyCLI, cfg.Strategy)
	assert.Equal(t, "/opt/claude/bin/claude", cfg.CLI.Binary)
	assert.Equal(t, []string{"/usage", "--plain"}, cfg.CLI.Args)
	assert.Equal(t, time.Minute, cfg.CLI.HardTimeout)
	assert.False(t, cfg.Display.ColorEnabled)

	// Absent keys keep defaults.
	assert.Equal(t, 20*time.Second, cfg.CLI.MarkerTimeout)
	assert.Equal(t, "table", cfg.Display.DefaultFormat)
	assert.True(t, cfg.Web.FetchOverage)
}

func TestLoadFromFileErrors(t *testing.T) {
	l := NewLoader("")

	_, err := l.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)

	_, err = l.LoadFromFile(writeConfig(t, "strategy: [web"))
	assert.ErrorIs(t, err, ErrInvalidYAML)

	_, err = l.LoadFromFile(writeConfig(t, "stratgy: web\n"))
	assert.ErrorIs(t, err, ErrInvalidYAML, "unknown keys are rejected")
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Web, cfg.Web)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadValidates(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "strategy: carrier-pigeon\n"))
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestEnvVarOverrides(t *testing.T) {
	path := writeConfig(t, `
strategy: web
server:
  addr: 0.0.0.0:9000
logging:
  level: warn
`)

	env := map[string]string{
		EnvStrategy:       " CLI ",
		EnvCredentialPath: "/env/key",
		EnvDBPath:         "/env/history.db",
		EnvLogLevel:       "DEBUG",
		EnvCLIBinary:      "/env/claude",
		EnvAddr:           "127.0.0.1:1",
	}
	l := &loader{configPath: path, getenv: func(k string) string { return env[k] }}

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, StrategyCLI, cfg.Strategy)
	assert.Equal(t, "/env/key", cfg.Credential.Path)
	assert.Equal(t, "/env/history.db", cfg.History.DBPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "/env/claude", cfg.CLI.Binary)
	assert.Equal(t, "127.0.0.1:1", cfg.Server.Addr)
}

func TestEnvVarsFromProcess(t *testing.T) {
	t.Setenv(EnvAddr, "localhost:7000")

	cfg, err := LoadFromFile(writeConfig(t, "server:\n  addr: file:1\n"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:7000", cfg.Server.Addr)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Strategy = StrategyCLI
	cfg.Monitor.Interval = 90 * time.Second
	cfg.Web.BrowserTLS = true
	cfg.Activity.Dirs = []string{"/srv/logs"}
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := NewLoader(path).LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Strategy = ""
	err := Save(cfg, filepath.Join(t.TempDir(), "config.yaml"))
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestMarshalUsesDurations(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout: 15s")
	assert.Contains(t, string(data), "interval: 5m0s")
}
