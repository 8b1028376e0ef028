// Package cliusage fetches usage by driving the vendor CLI's interactive
// usage screen through a pseudo-terminal and scraping what it paints.
//
// The CLI refuses to run without a terminal, so the client starts it under
// pkg/supervisor, waits for one of two known markers, sends a single
// cancel keystroke, and hands the captured text to pkg/termparse. Reset
// phrases are turned into instants by pkg/resettime.
//
// Example usage:
//
//	client := cliusage.New(cliusage.DefaultConfig(), log)
//	if !client.IsAvailable(ctx) {
//	    return errors.New("claude CLI not installed")
//	}
//	snap, err := client.FetchUsageData(ctx)
package cliusage

import (
	"context"
	"time"

	"github.com/0xmhha/quota-meter/pkg/supervisor"
)

// Config contains CLI strategy configuration.
type Config struct {
	// Binary is the CLI executable. Default: claude.
	Binary string

	// Args select the usage screen. Default: ["/usage"].
	Args []string

	// Dir is the working directory. Empty uses the home directory, or the
	// temp directory when home is unknown.
	Dir string

	// HardTimeout bounds the whole run. Default: 45s.
	HardTimeout time.Duration

	// MarkerTimeout bounds the wait for either marker. Default: 20s.
	MarkerTimeout time.Duration

	// PrimaryMarker appears once the usage screen has rendered.
	// Default: "Current session".
	PrimaryMarker string

	// SecondaryMarker appears in the screen footer. Default: "Esc to cancel".
	SecondaryMarker string

	// PrimaryDelay is the pause between the primary marker and the cancel
	// key, letting the remaining sections render. Default: 2s.
	PrimaryDelay time.Duration

	// SecondaryDelay is the pause after the secondary marker. Default: 3s.
	SecondaryDelay time.Duration
}

// DefaultConfig returns the defaults listed on Config.
func DefaultConfig() Config {
	return Config{
		Binary:          "claude",
		Args:            []string{"/usage"},
		HardTimeout:     45 * time.Second,
		MarkerTimeout:   20 * time.Second,
		PrimaryMarker:   "Current session",
		SecondaryMarker: "Esc to cancel",
		PrimaryDelay:    2 * time.Second,
		SecondaryDelay:  3 * time.Second,
	}
}

// Process is the part of a supervised child the client drives.
// *supervisor.Process implements it.
type Process interface {
	WaitFor(ctx context.Context, timeout time.Duration, match func(output string) int) int
	Send(keys []byte) error
	Done() <-chan struct{}
	Wait(ctx context.Context) (*supervisor.Result, error)
	Terminate() error
}

// StartFunc spawns a supervised child.
type StartFunc func(ctx context.Context, spec supervisor.Spec) (Process, error)

// AuthFailureMarkers are output fragments that mean the CLI's login is
// missing or expired. Matched case-insensitively.
var AuthFailureMarkers = []string{
	"OAuth token has expired",
	"Please run /login",
	"authentication_error",
	"Invalid API key",
	"token_expired",
}
