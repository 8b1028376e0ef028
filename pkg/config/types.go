// Package config provides configuration management for quota-meter.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("strategy: %s\n", cfg.Strategy)
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Acquisition strategies.
const (
	StrategyWeb = "web"
	StrategyCLI = "cli"
)

// Config represents the complete application configuration.
//
// Invariants:
// - Strategy is web or cli
// - every timeout and interval is > 0
// - History.Retention is >= 0 (0 keeps everything).
type Config struct {
	// Strategy selects how usage is fetched (web or cli).
	Strategy string `yaml:"strategy"`

	// Credential settings
	Credential CredentialConfig `yaml:"credential"`

	// Web API client settings
	Web WebConfig `yaml:"web"`

	// Usage command settings
	CLI CLIConfig `yaml:"cli"`

	// Snapshot history settings
	History HistoryConfig `yaml:"history"`

	// HTTP API settings
	Server ServerConfig `yaml:"server"`

	// Display settings
	Display DisplayConfig `yaml:"display"`

	// Polling settings
	Monitor MonitorConfig `yaml:"monitor"`

	// Local log scanning settings
	Activity ActivityConfig `yaml:"activity"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// CredentialConfig contains credential store settings.
type CredentialConfig struct {
	// Path to the session key file
	Path string `yaml:"path"`
}

// WebConfig contains web API client settings.
type WebConfig struct {
	// API base URL
	BaseURL string `yaml:"base_url"`

	// Per-request timeout
	Timeout time.Duration `yaml:"timeout"`

	// Whether to request the overage spend limit
	FetchOverage bool `yaml:"fetch_overage"`

	// Present a browser TLS fingerprint
	BrowserTLS bool `yaml:"browser_tls"`
}

// CLIConfig contains usage command settings.
type CLIConfig struct {
	// Executable name or path
	Binary string `yaml:"binary"`

	// Arguments passed to the executable
	Args []string `yaml:"args"`

	// Upper bound on the whole run
	HardTimeout time.Duration `yaml:"hard_timeout"`

	// How long to wait for the primary marker
	MarkerTimeout time.Duration `yaml:"marker_timeout"`

	// Text that means the usage screen is rendered
	PrimaryMarker string `yaml:"primary_marker"`

	// Fallback text that means the screen is interactive
	SecondaryMarker string `yaml:"secondary_marker"`

	// Settle time after each marker before cancelling
	PrimaryDelay   time.Duration `yaml:"primary_delay"`
	SecondaryDelay time.Duration `yaml:"secondary_delay"`
}

// HistoryConfig contains snapshot history settings.
type HistoryConfig struct {
	// Path to BoltDB database file
	DBPath string `yaml:"db_path"`

	// How long to keep snapshots (0 keeps everything)
	Retention time.Duration `yaml:"retention"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	// Listen address
	Addr string `yaml:"addr"`
}

// DisplayConfig contains display-related settings.
type DisplayConfig struct {
	// Default output format (table, simple, json)
	DefaultFormat string `yaml:"default_format"`

	// Enable colored output
	ColorEnabled bool `yaml:"color_enabled"`
}

// MonitorConfig contains polling settings.
type MonitorConfig struct {
	// Time between fetches
	Interval time.Duration `yaml:"interval"`
}

// ActivityConfig contains local log scanning settings.
type ActivityConfig struct {
	// Directories holding the CLI's conversation logs
	Dirs []string `yaml:"dirs"`

	// Files parsed at once
	Concurrency int `yaml:"concurrency"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if c.Strategy != StrategyWeb && c.Strategy != StrategyCLI {
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Strategy)
	}
	if c.Credential.Path == "" {
		return ErrEmptyCredentialPath
	}

	// Validate web config
	u, err := url.Parse(c.Web.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Web.BaseURL)
	}
	if c.Web.Timeout <= 0 {
		return ErrInvalidWebTimeout
	}

	// Validate cli config
	if c.CLI.Binary == "" {
		return ErrEmptyBinary
	}
	if c.CLI.HardTimeout <= 0 || c.CLI.MarkerTimeout <= 0 {
		return ErrInvalidCLITimeout
	}
	if c.CLI.PrimaryDelay < 0 || c.CLI.SecondaryDelay < 0 {
		return ErrInvalidCLITimeout
	}

	// Validate history config
	if c.History.DBPath == "" {
		return ErrEmptyDBPath
	}
	if c.History.Retention < 0 {
		return ErrInvalidRetention
	}

	if c.Server.Addr == "" {
		return ErrEmptyAddr
	}

	// Validate display config
	validFormats := map[string]bool{
		"table":  true,
		"simple": true,
		"json":   true,
	}
	if !validFormats[c.Display.DefaultFormat] {
		return ErrInvalidDisplayFormat
	}

	if c.Monitor.Interval <= 0 {
		return ErrInvalidInterval
	}

	if len(c.Activity.Dirs) == 0 {
		return ErrEmptyActivityDirs
	}
	if c.Activity.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	// Validate logging config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		Strategy: StrategyWeb,
		Credential: CredentialConfig{
			Path: defaultCredentialPath(),
		},
		Web: WebConfig{
			BaseURL:      "https://claude.ai/api",
			Timeout:      15 * time.Second,
			FetchOverage: true,
		},
		CLI: CLIConfig{
			Binary:          "claude",
			Args:            []string{"/usage"},
			HardTimeout:     45 * time.Second,
			MarkerTimeout:   20 * time.Second,
			PrimaryMarker:   "Current session",
			SecondaryMarker: "Esc to cancel",
			PrimaryDelay:    2 * time.Second,
			SecondaryDelay:  3 * time.Second,
		},
		History: HistoryConfig{
			DBPath:    defaultDBPath(),
			Retention: 720 * time.Hour, // 30 days
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Display: DisplayConfig{
			DefaultFormat: "table",
			ColorEnabled:  true,
		},
		Monitor: MonitorConfig{
			Interval: 5 * time.Minute,
		},
		Activity: ActivityConfig{
			Dirs:        []string{"~/.claude/projects", "~/.config/claude/projects"},
			Concurrency: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
