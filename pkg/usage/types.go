// Package usage defines the canonical usage snapshot shared by every
// acquisition strategy, the typed failure taxonomy, and the reset-time
// defaults both strategies fall back to.
//
// A Fetcher produces one immutable Snapshot per call. Callers choose a
// single strategy (web or cli) by configuration and own polling, retries,
// and staleness decisions.
package usage

import (
	"context"
	"encoding/json"
	"math"
	"time"
)

// Category identifies a quota window.
type Category string

// Quota categories.
const (
	CategorySession Category = "session"
	CategoryWeekly  Category = "weekly"
	CategoryModel   Category = "model"
)

// Source names the strategy that produced a snapshot.
type Source string

// Snapshot sources.
const (
	SourceWeb Source = "web"
	SourceCLI Source = "cli"
)

// ReferenceLimit is the fixed token figure used to turn a weekly percentage
// into an approximate token count for display. It is not a real budget.
const ReferenceLimit = 1000000

// Cost is the overage spend reported alongside a snapshot.
// A snapshot either carries all three values or none of them.
type Cost struct {
	Used     float64
	Limit    float64
	Currency string
}

// Snapshot is one immutable usage reading.
//
// Invariants:
//   - every percentage is within [0,100]
//   - every reset time is a concrete, non-zero instant
type Snapshot struct {
	SessionPercentage float64
	SessionResetTime  time.Time
	SessionResetText  string

	WeeklyPercentage float64
	WeeklyResetTime  time.Time
	WeeklyResetText  string
	WeeklyTokensUsed int64
	WeeklyLimit      int64

	OpusWeeklyPercentage float64
	OpusWeeklyTokensUsed int64
	OpusResetText        string

	Cost *Cost

	Source       Source
	LastUpdated  time.Time
	UserTimezone string
}

// Fetcher acquires a usage snapshot. Each call is attempted exactly once.
type Fetcher interface {
	FetchUsageData(ctx context.Context) (*Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (*Snapshot, error)

// FetchUsageData implements Fetcher.
func (f FetcherFunc) FetchUsageData(ctx context.Context) (*Snapshot, error) {
	return f(ctx)
}

// Clamp limits a percentage to [0,100]. NaN becomes 0.
func Clamp(pct float64) float64 {
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// ApproxTokens converts a percentage into an approximate token count
// against ReferenceLimit, rounding down.
func ApproxTokens(pct float64) int64 {
	return int64(math.Floor(ReferenceLimit * pct / 100))
}

// wireSnapshot is the JSON shape consumed by UI collaborators.
type wireSnapshot struct {
	SessionTokensUsed    int64    `json:"sessionTokensUsed"`
	SessionLimit         int64    `json:"sessionLimit"`
	SessionPercentage    float64  `json:"sessionPercentage"`
	SessionResetTime     string   `json:"sessionResetTime"`
	SessionResetText     string   `json:"sessionResetText,omitempty"`
	WeeklyTokensUsed     int64    `json:"weeklyTokensUsed"`
	WeeklyLimit          int64    `json:"weeklyLimit"`
	WeeklyPercentage     float64  `json:"weeklyPercentage"`
	WeeklyResetTime      string   `json:"weeklyResetTime"`
	WeeklyResetText      string   `json:"weeklyResetText,omitempty"`
	OpusWeeklyTokensUsed int64    `json:"opusWeeklyTokensUsed"`
	OpusWeeklyPercentage float64  `json:"opusWeeklyPercentage"`
	OpusResetText        string   `json:"opusResetText,omitempty"`
	CostUsed             *float64 `json:"costUsed"`
	CostLimit            *float64 `json:"costLimit"`
	CostCurrency         *string  `json:"costCurrency"`
	Source               Source   `json:"source,omitempty"`
	LastUpdated          string   `json:"lastUpdated"`
	UserTimezone         string   `json:"userTimezone"`
}

// MarshalJSON encodes the snapshot with flat, nullable cost fields and
// RFC 3339 timestamps.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{
		SessionPercentage:    s.SessionPercentage,
		SessionResetTime:     formatTime(s.SessionResetTime),
		SessionResetText:     s.SessionResetText,
		WeeklyTokensUsed:     s.WeeklyTokensUsed,
		WeeklyLimit:          s.WeeklyLimit,
		WeeklyPercentage:     s.WeeklyPercentage,
		WeeklyResetTime:      formatTime(s.WeeklyResetTime),
		WeeklyResetText:      s.WeeklyResetText,
		OpusWeeklyTokensUsed: s.OpusWeeklyTokensUsed,
		OpusWeeklyPercentage: s.OpusWeeklyPercentage,
		OpusResetText:        s.OpusResetText,
		Source:               s.Source,
		LastUpdated:          formatTime(s.LastUpdated),
		UserTimezone:         s.UserTimezone,
	}
	if s.Cost != nil {
		used, limit, currency := s.Cost.Used, s.Cost.Limit, s.Cost.Currency
		w.CostUsed = &used
		w.CostLimit = &limit
		w.CostCurrency = &currency
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the shape written by MarshalJSON.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*s = Snapshot{
		SessionPercentage:    w.SessionPercentage,
		SessionResetTime:     parseTime(w.SessionResetTime),
		SessionResetText:     w.SessionResetText,
		WeeklyPercentage:     w.WeeklyPercentage,
		WeeklyResetTime:      parseTime(w.WeeklyResetTime),
		WeeklyResetText:      w.WeeklyResetText,
		WeeklyTokensUsed:     w.WeeklyTokensUsed,
		WeeklyLimit:          w.WeeklyLimit,
		OpusWeeklyPercentage: w.OpusWeeklyPercentage,
		OpusWeeklyTokensUsed: w.OpusWeeklyTokensUsed,
		OpusResetText:        w.OpusResetText,
		Source:               w.Source,
		LastUpdated:          parseTime(w.LastUpdated),
		UserTimezone:         w.UserTimezone,
	}
	if w.CostUsed != nil && w.CostLimit != nil && w.CostCurrency != nil {
		s.Cost = &Cost{Used: *w.CostUsed, Limit: *w.CostLimit, Currency: *w.CostCurrency}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
