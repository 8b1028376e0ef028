// Package credwatch notices when the stored session credential changes
// on disk.
//
// fsnotify cannot reliably follow a single file that is replaced by
// rename, so the watcher observes the credential file's directory and
// forwards only the events that name the credential file itself. Bursts
// of events (temp file write, rename, chmod) are coalesced into one.
//
// Example usage:
//
//	w, err := credwatch.New(credwatch.Config{
//	    Path: store.Path(),
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for event := range w.Events() {
//	    fmt.Printf("credential %s: %s\n", event.Path, event.Op)
//	}
package credwatch

import (
	"context"
	"time"
)

// Op describes a file operation type.
type Op uint32

// File operation types.
const (
	OpCreate Op = 1 << iota // File created
	OpWrite                 // File modified
	OpRemove                // File deleted
	OpRename                // File renamed/moved
	OpChmod                 // File permissions changed
)

// String returns a human-readable operation name.
func (op Op) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpWrite:
		return "WRITE"
	case OpRemove:
		return "REMOVE"
	case OpRename:
		return "RENAME"
	case OpChmod:
		return "CHMOD"
	default:
		return "UNKNOWN"
	}
}

// Event reports a change to the credential file.
type Event struct {
	// Path is the credential file path.
	Path string

	// Op is the last operation seen in the debounce window.
	Op Op

	// Timestamp is when the event was emitted.
	Timestamp time.Time
}

// Watcher observes a single credential file.
type Watcher interface {
	// Start begins watching. It returns once the watch is registered;
	// events are delivered until ctx is cancelled or Close is called.
	//
	// Returns error if the directory cannot be watched.
	Start(ctx context.Context) error

	// Events returns the debounced event channel.
	// The channel is closed by Close.
	Events() <-chan Event

	// Errors returns non-fatal watcher errors.
	// The channel is closed by Close.
	Errors() <-chan error

	// Close stops watching and releases resources.
	Close() error
}

// Config contains watcher configuration.
type Config struct {
	// Path is the credential file. A leading ~ expands to home.
	Path string

	// DebounceInterval is how long the file must be quiet before an
	// event is emitted. Default: 100ms.
	DebounceInterval time.Duration
}
