// Package monitor polls a usage fetcher on an interval and publishes
// each outcome to subscribers.
//
// Successful snapshots are recorded to history when a Recorder is
// configured. Failures are published too, so a display can show the
// last good reading next to the latest error.
package monitor

import (
	"context"
	"time"

	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Config holds the configuration for the poller.
type Config struct {
	// Interval is the time between fetches. Default: 5 minutes.
	Interval time.Duration

	// FetchTimeout bounds each fetch. Zero leaves the fetcher's own
	// timeouts in charge.
	FetchTimeout time.Duration
}

// Recorder stores successful snapshots. history.Store satisfies it.
type Recorder interface {
	Record(snap *usage.Snapshot) (*history.Entry, error)
}

// Poller fetches usage periodically.
type Poller interface {
	// Start fetches once immediately, then on every interval, until ctx
	// is cancelled or Stop is called. It does not block.
	Start(ctx context.Context) error

	// Stop stops polling and waits for an in-flight fetch to finish.
	Stop() error

	// Refresh requests an immediate fetch. Requests made while one is
	// already pending are coalesced.
	Refresh()

	// Updates returns the update channel. Only the newest unread
	// updates are kept when the consumer falls behind.
	Updates() <-chan Update

	// Latest returns the most recent update, if any.
	Latest() (Update, bool)

	// Close stops polling and closes the update channel.
	Close() error
}

// Update represents the outcome of one fetch.
type Update struct {
	// Timestamp of the fetch
	Timestamp time.Time

	// Snapshot is nil when Err is set
	Snapshot *usage.Snapshot

	// Err is the fetch failure, if any
	Err error

	// Delta is the change since the previous successful snapshot
	Delta Delta
}

// Delta represents percentage point changes between two snapshots.
type Delta struct {
	Session float64
	Weekly  float64
	Model   float64
}
