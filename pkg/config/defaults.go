package config

import (
	"os"
	"path/filepath"
)

// defaultCredentialPath returns the default session key file path.
//
// Returns: ~/.claude-session-key.
func defaultCredentialPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.claude-session-key"
	}

	return filepath.Join(homeDir, ".claude-session-key")
}

// defaultDBPath returns the default database file path.
//
// Returns: ~/.config/quota-meter/history.db.
func defaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./history.db"
	}

	return filepath.Join(homeDir, ".config", "quota-meter", "history.db")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/quota-meter/config.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(homeDir, ".config", "quota-meter", "config.yaml")
}
