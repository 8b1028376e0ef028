// Package activity summarizes token usage recorded in the CLI's local
// conversation logs.
//
// The CLI writes one JSONL file per conversation under
// <dir>/<project>/<session>.jsonl. Every assistant reply carries the
// token usage of the request that produced it. The plan windows only
// report percentages, so these totals show what this machine contributed
// to them.
//
// Example usage:
//
//	s := activity.New(activity.Config{}, logger.Default())
//	sum, err := s.Scan(ctx, time.Now().Add(-usage.SessionWindow))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Tokens: %d across %d requests\n", sum.Tokens.Total(), sum.Requests)
package activity

import (
	"context"
	"time"
)

// Tokens holds token counts by kind.
type Tokens struct {
	Input         int64 `json:"input"`
	Output        int64 `json:"output"`
	CacheCreation int64 `json:"cacheCreation"`
	CacheRead     int64 `json:"cacheRead"`
}

// Total returns the sum of all token kinds.
func (t Tokens) Total() int64 {
	return t.Input + t.Output + t.CacheCreation + t.CacheRead
}

func (t *Tokens) add(o Tokens) {
	t.Input += o.Input
	t.Output += o.Output
	t.CacheCreation += o.CacheCreation
	t.CacheRead += o.CacheRead
}

// ModelStats is the usage attributed to one model.
type ModelStats struct {
	Model    string `json:"model"`
	Requests int    `json:"requests"`
	Tokens   Tokens `json:"tokens"`
}

// Summary is the aggregate of every request logged in [Since, Until].
type Summary struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`

	// Files is the number of log files read.
	Files int `json:"files"`

	// Sessions is the number of distinct conversations with requests in
	// the window.
	Sessions int `json:"sessions"`

	// Requests counts deduplicated assistant replies.
	Requests int `json:"requests"`

	Tokens Tokens `json:"tokens"`

	// Models is sorted by total tokens, largest first.
	Models []ModelStats `json:"models"`

	// FirstSeen and LastSeen bound the requests found. Both are zero when
	// Requests is zero.
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// Scanner reads the local logs.
type Scanner interface {
	// Scan summarizes every request logged at or after since.
	//
	// Parameters:
	//   - ctx: Cancels the scan between files
	//   - since: Start of the window
	//
	// Returns:
	//   - Summary, possibly empty when no logs exist
	//   - ctx.Err() if cancelled
	//
	// Unreadable files and malformed lines are logged and skipped.
	Scan(ctx context.Context, since time.Time) (*Summary, error)
}

// Config contains scanner configuration.
type Config struct {
	// Dirs are the log roots to scan. A leading ~ expands to home.
	// Default: DefaultDirs().
	Dirs []string

	// Concurrency bounds how many files are parsed at once. Default: 4.
	Concurrency int

	// MaxFileSize skips larger files. Default: 100MB.
	MaxFileSize int64
}

const (
	defaultConcurrency = 4
	defaultMaxFileSize = 100 * 1024 * 1024

	// maxLineLength bounds one JSONL line. Replies with large tool
	// output can exceed the bufio default.
	maxLineLength = 4 * 1024 * 1024
)
