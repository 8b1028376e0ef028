package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidStrategy is returned when strategy is not web or cli.
	ErrInvalidStrategy = errors.New("invalid strategy: must be web or cli")

	// ErrEmptyCredentialPath is returned when no credential path is set.
	ErrEmptyCredentialPath = errors.New("credential path must not be empty")

	// ErrInvalidBaseURL is returned when the web base URL is not an http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid web base URL")

	// ErrInvalidWebTimeout is returned when the web timeout is <= 0.
	ErrInvalidWebTimeout = errors.New("invalid web timeout: must be > 0")

	// ErrEmptyBinary is returned when no usage command is set.
	ErrEmptyBinary = errors.New("cli binary must not be empty")

	// ErrInvalidCLITimeout is returned when a cli timeout is <= 0 or a delay is negative.
	ErrInvalidCLITimeout = errors.New("invalid cli timeout: must be > 0")

	// ErrEmptyDBPath is returned when no history database path is set.
	ErrEmptyDBPath = errors.New("history db path must not be empty")

	// ErrInvalidRetention is returned when history retention is negative.
	ErrInvalidRetention = errors.New("invalid history retention: must be >= 0")

	// ErrEmptyAddr is returned when no server address is set.
	ErrEmptyAddr = errors.New("server addr must not be empty")

	// ErrInvalidDisplayFormat is returned when display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, simple, or json")

	// ErrInvalidInterval is returned when the monitor interval is <= 0.
	ErrInvalidInterval = errors.New("invalid monitor interval: must be > 0")

	// ErrEmptyActivityDirs is returned when no log directory is configured.
	ErrEmptyActivityDirs = errors.New("activity dirs must not be empty")

	// ErrInvalidConcurrency is returned when activity concurrency is <= 0.
	ErrInvalidConcurrency = errors.New("invalid activity concurrency: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
