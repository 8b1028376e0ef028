// Package server exposes the usage service over HTTP.
//
// Routes:
//
//	GET  /api/claude/usage       current snapshot
//	POST /api/claude/key         store a session credential {"key": "..."}
//	GET  /api/claude/key/check   {"exists": bool}
//	GET  /api/claude/history     recorded snapshots (when history is enabled)
//	GET  /api/claude/activity    local log token totals (when enabled)
//	GET  /metrics                Prometheus metrics
//	GET  /healthz                liveness
//
// The "credential exists" answer is cached and dropped whenever the
// credential file changes, a key is saved, or a fetch reports that the
// credential must be replaced.
package server

import (
	"time"

	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Config contains HTTP server settings.
type Config struct {
	// Addr is the listen address. Default: 127.0.0.1:8787.
	Addr string

	// ReadHeaderTimeout bounds request header reads. Default: 10s.
	ReadHeaderTimeout time.Duration

	// WriteTimeout must outlast the slowest fetch. Default: 90s.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10s.
	ShutdownTimeout time.Duration
}

// History is the slice of the history store the server uses.
// history.Store satisfies it.
type History interface {
	Record(snap *usage.Snapshot) (*history.Entry, error)
	List(limit int) ([]*history.Entry, error)
}

type errorResponse struct {
	Error string     `json:"error"`
	Kind  usage.Kind `json:"kind,omitempty"`
}

type keyRequest struct {
	Key string `json:"key"`
}

type keyCheckResponse struct {
	Exists bool `json:"exists"`
}

const (
	defaultAddr         = "127.0.0.1:8787"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxKeyBodyBytes     = 64 << 10
)
