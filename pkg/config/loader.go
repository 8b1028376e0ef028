package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override file and default values.
const (
	EnvStrategy       = "QUOTA_METER_STRATEGY"
	EnvCredentialPath = "QUOTA_METER_CREDENTIAL_PATH"
	EnvDBPath         = "QUOTA_METER_DB"
	EnvLogLevel       = "QUOTA_METER_LOG_LEVEL"
	EnvCLIBinary      = "QUOTA_METER_CLI_BINARY"
	EnvAddr           = "QUOTA_METER_ADDR"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads a specific file over the defaults, without
	// environment overrides or validation.
	LoadFromFile(path string) (*Config, error)

	// Path returns the file Load reads, or "" when none was found.
	Path() string
}

// loader implements the Loader interface.
type loader struct {
	configPath string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for config file in:
// 1. ./config.yaml (current directory)
// 2. ~/.config/quota-meter/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
		getenv:     os.Getenv,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	if configPath := l.Path(); configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly named file must load; a discovered one that
			// vanished is ignored.
			if l.configPath != "" || !errors.Is(err, ErrConfigNotFound) {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = fileCfg
		}
	}

	l.applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
//
// Keys absent from the file keep their default values. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return cfg, nil
}

// Path implements Loader.Path.
func (l *loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	return findConfigFile()
}

// findConfigFile searches for a config file in standard locations.
//
// Searches in order:
// 1. ./config.yaml
// 2. ~/.config/quota-meter/config.yaml
//
// Returns empty string if no config file is found.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		DefaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// applyEnvVars applies environment variable overrides to the configuration.
func (l *loader) applyEnvVars(cfg *Config) {
	if v := l.getenv(EnvStrategy); v != "" {
		cfg.Strategy = strings.ToLower(strings.TrimSpace(v))
	}
	if v := l.getenv(EnvCredentialPath); v != "" {
		cfg.Credential.Path = v
	}
	if v := l.getenv(EnvDBPath); v != "" {
		cfg.History.DBPath = v
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := l.getenv(EnvCLIBinary); v != "" {
		cfg.CLI.Binary = v
	}
	if v := l.getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
}

// Load is a convenience function that creates a loader and loads configuration.
//
// Equivalent to:
//
//	loader := NewLoader("")
//	return loader.Load()
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
//
// Equivalent to:
//
//	loader := NewLoader(path)
//	return loader.Load()
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
