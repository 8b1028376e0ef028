// Package history keeps a local record of fetched usage snapshots with
// persistent storage.
//
// Entries are keyed by capture time so listing is ordered without an
// index scan, and each entry also gets a UUID for direct lookup.
//
// Example usage:
//
//	store, err := history.New(history.Config{
//	    DBPath: "~/.config/quota-meter/history.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	entry, err := store.Record(snapshot)
//	recent, err := store.List(10)
package history

import (
	"time"

	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Entry is one recorded snapshot.
type Entry struct {
	// ID is a random UUID assigned on Record.
	ID string `json:"id"`

	// CapturedAt is when the entry was recorded.
	CapturedAt time.Time `json:"captured_at"`

	// Snapshot is the recorded reading.
	Snapshot usage.Snapshot `json:"snapshot"`
}

// Store provides snapshot history operations.
type Store interface {
	// Record stores snap and returns the new entry.
	//
	// Returns error if snap is nil or the database write fails.
	Record(snap *usage.Snapshot) (*Entry, error)

	// Get retrieves an entry by ID.
	//
	// Returns:
	//   - Entry if found
	//   - ErrEntryNotFound if not found
	//   - Error for database failures
	Get(id string) (*Entry, error)

	// Latest returns the most recent entry, or ErrEntryNotFound when the
	// history is empty.
	Latest() (*Entry, error)

	// List returns up to limit entries, newest first. A limit <= 0
	// returns every entry.
	List(limit int) ([]*Entry, error)

	// Prune deletes entries captured before cutoff and returns how many
	// were removed.
	Prune(cutoff time.Time) (int, error)

	// Close closes the database connection and releases resources.
	Close() error
}

// Config contains history store configuration.
type Config struct {
	// DBPath is the BoltDB file path. A leading ~ expands to home.
	DBPath string

	// Timeout is the database open lock timeout (default: 1 second).
	Timeout time.Duration

	// Retention prunes entries older than this on Record. Zero keeps
	// everything.
	Retention time.Duration
}
