package activity

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// logFile is one discovered conversation log.
type logFile struct {
	path    string
	size    int64
	modTime time.Time
}

// DefaultDirs returns the log roots the CLI writes to: ~/.claude/projects
// and ~/.config/claude/projects.
func DefaultDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".claude", "projects"),
		filepath.Join(home, ".config", "claude", "projects"),
	}
}

// discover walks every root for .jsonl files modified at or after since.
// Files last written before the window cannot hold requests inside it.
// Missing roots are skipped.
func (s *scanner) discover(since time.Time) ([]logFile, error) {
	var files []logFile

	for _, root := range s.dirs {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				s.logger.Debug("log directory not found, skipping", "path", root)
				continue
			}
			return nil, fmt.Errorf("failed to stat directory %s: %w", root, err)
		}
		if !info.IsDir() {
			s.logger.Warn("log path is not a directory, skipping", "path", root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				s.logger.Debug("skipping unreadable path", "path", path, "error", walkErr)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
				return nil
			}

			fi, err := d.Info()
			if err != nil {
				return nil
			}
			if fi.ModTime().Before(since) {
				return nil
			}

			files = append(files, logFile{
				path:    path,
				size:    fi.Size(),
				modTime: fi.ModTime(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory %s: %w", root, err)
		}
	}

	s.logger.Debug("discovery complete", "files", len(files))
	return files, nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
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

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}
