package credwatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/quota-meter/pkg/logger"
)

// watcher implements the Watcher interface using fsnotify.
type watcher struct {
	fsw    *fsnotify.Watcher
	logger logger.Logger
	config Config
	path   string

	events chan Event
	errors chan error

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// Debouncing state. One file means one timer.
	debounceMu sync.Mutex
	timer      *time.Timer
	pendingOp  Op
}

// New creates a credential file watcher.
//
// Parameters:
//   - cfg: Watcher configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Watcher
//   - Error if the path is empty or fsnotify cannot be initialized
func New(cfg Config, log logger.Logger) (Watcher, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, ErrEmptyPath
	}
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 100 * time.Millisecond
	}

	path, err := filepath.Abs(expandHome(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	log = log.With("component", "credwatch")
	log.Debug("credential watcher created",
		"path", path,
		"debounce_interval", cfg.DebounceInterval)

	return &watcher{
		fsw:      fsw,
		logger:   log,
		config:   cfg,
		path:     path,
		events:   make(chan Event, 16),
		errors:   make(chan error, 4),
		stopChan: make(chan struct{}),
	}, nil
}

// Start implements Watcher.Start.
func (w *watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.running = true
	w.mu.Unlock()

	// The directory may not exist before the first key is saved.
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		w.setStopped()
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	if err := w.fsw.Add(dir); err != nil {
		w.setStopped()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("credential watcher started", "dir", dir)

	go w.processEvents(ctx)
	return nil
}

func (w *watcher) setStopped() {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
}

// Events implements Watcher.Events.
func (w *watcher) Events() <-chan Event {
	return w.events
}

// Errors implements Watcher.Errors.
func (w *watcher) Errors() <-chan error {
	return w.errors
}

// Close implements Watcher.Close.
func (w *watcher) Close() error {
	w.debounceMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.debounceMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.running {
		close(w.stopChan)
		w.running = false
	}

	close(w.events)
	close(w.errors)

	if err := w.fsw.Close(); err != nil {
		w.logger.Error("failed to close fsnotify watcher", "error", err)
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.logger.Debug("credential watcher closed")
	return nil
}

// processEvents handles events from fsnotify.
func (w *watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("event processing stopped", "reason", "context cancelled")
			return

		case <-w.stopChan:
			w.logger.Debug("event processing stopped", "reason", "stop signal")
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("fsnotify error", "error", err)
			w.emitError(err)
		}
	}
}

// handleEvent filters out everything but the credential file.
func (w *watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	op := convertOp(event.Op)
	if op == 0 {
		return
	}

	w.debounce(op)
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	case op.Has(fsnotify.Chmod):
		return OpChmod
	default:
		return 0
	}
}

// debounce restarts the quiet-period timer; the last op wins.
func (w *watcher) debounce(op Op) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	w.pendingOp = op
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.DebounceInterval, w.flush)
}

func (w *watcher) flush() {
	w.debounceMu.Lock()
	op := w.pendingOp
	w.timer = nil
	w.debounceMu.Unlock()

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.events <- Event{Path: w.path, Op: op, Timestamp: time.Now()}:
		w.logger.Debug("credential changed", "op", op)
	default:
		w.logger.Warn("event channel full, dropping event", "op", op)
	}
}

func (w *watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.errors <- err:
	default:
		w.logger.Warn("error channel full, dropping error")
	}
}

// expandHome expands ~ in file paths to the user's home directory.
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

	return filepath.Join(homeDir, path[2:])
}
