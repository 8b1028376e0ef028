// Package credential persists the single web session credential used by
// the web strategy.
//
// The credential is a plain-text file readable only by its owner. Saving
// replaces the previous value entirely; loading normalizes and validates it.
//
// Example usage:
//
//	store := credential.New(credential.Config{Path: "~/.claude-session-key"}, log)
//	if err := store.Save(`sessionKey="sk-ant-..."`); err != nil {
//	    return err
//	}
//	token, err := store.Load()
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// RequiredPrefix is the prefix every valid session credential starts with.
const RequiredPrefix = "sk-ant-"

// cookiePrefix is what users get when they copy the whole cookie pair.
const cookiePrefix = "sessionKey="

// DefaultFileName is the credential file name under the user's home.
const DefaultFileName = ".claude-session-key"

// Config contains credential store configuration.
type Config struct {
	// Path is the credential file. A leading ~ expands to the home dir.
	// Default: ~/.claude-session-key.
	Path string
}

// Store is a single-slot file credential store.
//
// There is one writer (the settings surface) and reads take no lock:
// the last write wins and reads are idempotent.
type Store struct {
	path   string
	logger logger.Logger
}

// New creates a store for cfg.Path.
func New(cfg Config, log logger.Logger) *Store {
	path := cfg.Path
	if path == "" {
		path = DefaultPath()
	}
	return &Store{
		path:   ExpandHome(path),
		logger: log.With("component", "credential"),
	}
}

// Path returns the resolved credential file path.
func (s *Store) Path() string {
	return s.path
}

// Save normalizes raw and writes it with owner-only permissions.
// The value is not validated; Load reports format problems.
func (s *Store) Save(raw string) error {
	token := Normalize(raw)

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // nolint:errcheck

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("failed to set credential permissions: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credential: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace credential: %w", err)
	}

	s.logger.Info("credential saved", "path", s.path, "prefix", logger.Mask(token))
	return nil
}

// Load reads, normalizes, and validates the stored credential.
//
// Returns a *usage.Error of KindNoCredential when nothing is stored and
// KindInvalidCredentialFormat when the value lacks RequiredPrefix.
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path) // nolint:gosec
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", usage.ErrNoCredential
		}
		return "", fmt.Errorf("failed to read credential: %w", err)
	}

	token := Normalize(string(data))
	if err := Validate(token); err != nil {
		s.logger.Warn("invalid credential format", "prefix", logger.Mask(token))
		return "", err
	}
	return token, nil
}

// Exists reports whether a valid credential is stored. It never fails:
// absence, read errors, and invalid values all report false.
func (s *Store) Exists() bool {
	_, err := s.Load()
	return err == nil
}

// Normalize trims whitespace, removes a leading "sessionKey=" and strips
// one surrounding double quote on each side.
func Normalize(raw string) string {
	token := strings.TrimSpace(raw)
	token = strings.TrimPrefix(token, cookiePrefix)
	token = strings.TrimPrefix(token, `"`)
	token = strings.TrimSuffix(token, `"`)
	return token
}

// Validate checks a normalized credential against RequiredPrefix.
func Validate(token string) error {
	if token == "" || !strings.HasPrefix(token, RequiredPrefix) {
		return usage.ErrInvalidCredentialFormat
	}
	return nil
}

// DefaultPath returns ~/.claude-session-key, or the file name alone when
// the home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
