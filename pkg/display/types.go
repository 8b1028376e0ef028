// Package display renders usage snapshots, snapshot history and local
// log activity for the terminal.
//
// It supports multiple output formats (table, JSON, simple text). The
// table format draws percentage bars and colors them by severity when
// color is enabled.
package display

import (
	"io"
	"time"

	"github.com/0xmhha/quota-meter/pkg/activity"
	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays the snapshot with bars, one window per row.
	FormatTable Format = "table"

	// FormatJSON displays the snapshot as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays the snapshot on a single line.
	FormatSimple Format = "simple"
)

// Formatter formats and displays usage data.
type Formatter interface {
	// FormatSnapshot formats a single usage reading.
	//
	// Parameters:
	//   - w: Output writer
	//   - snap: Snapshot to format
	//
	// Returns error if formatting fails.
	FormatSnapshot(w io.Writer, snap *usage.Snapshot) error

	// FormatHistory formats recorded snapshots, newest first.
	//
	// Parameters:
	//   - w: Output writer
	//   - entries: History entries to format
	//
	// Returns error if formatting fails.
	FormatHistory(w io.Writer, entries []*history.Entry) error

	// FormatActivity formats locally logged token usage.
	//
	// Returns ErrNilSummary if sum is nil.
	FormatActivity(w io.Writer, sum *activity.Summary) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ColorEnabled enables ANSI colors in the table format.
	// Callers usually pass ColorSupported(os.Stdout).
	ColorEnabled bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool

	// Now returns the reference time for "resets in" durations.
	// Default: time.Now.
	Now func() time.Time
}
