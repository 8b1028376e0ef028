package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/quota-meter/pkg/activity"
	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *simpleFormatter) FormatSnapshot(w io.Writer, snap *usage.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}

	now := f.config.Now()
	parts := []string{
		fmt.Sprintf("5h: %s (resets %s)",
			formatPercent(snap.SessionPercentage),
			formatDuration(snap.SessionResetTime.Sub(now))),
		fmt.Sprintf("7d: %s (resets %s)",
			formatPercent(snap.WeeklyPercentage),
			formatDuration(snap.WeeklyResetTime.Sub(now))),
		fmt.Sprintf("model: %s", formatPercent(snap.OpusWeeklyPercentage)),
	}
	if snap.Cost != nil {
		parts = append(parts, "extra: "+formatCost(snap.Cost.Used, snap.Cost.Limit, snap.Cost.Currency))
	}

	_, err := fmt.Fprintln(w, strings.Join(parts, "  "))
	return err
}

// FormatHistory implements Formatter.FormatHistory.
func (f *simpleFormatter) FormatHistory(w io.Writer, entries []*history.Entry) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(w, "%s  5h: %s  7d: %s  model: %s\n",
			e.CapturedAt.Local().Format(timestampLayout),
			formatPercent(e.Snapshot.SessionPercentage),
			formatPercent(e.Snapshot.WeeklyPercentage),
			formatPercent(e.Snapshot.OpusWeeklyPercentage)); err != nil {
			return err
		}
	}

	return nil
}

// FormatActivity implements Formatter.FormatActivity.
func (f *simpleFormatter) FormatActivity(w io.Writer, sum *activity.Summary) error {
	if sum == nil {
		return ErrNilSummary
	}

	parts := []string{
		fmt.Sprintf("tokens: %s", formatNumber(sum.Tokens.Total())),
		fmt.Sprintf("requests: %d", sum.Requests),
	}
	for _, m := range sum.Models {
		parts = append(parts, fmt.Sprintf("%s: %s", m.Model, formatNumber(m.Tokens.Total())))
	}

	_, err := fmt.Fprintln(w, strings.Join(parts, "  "))
	return err
}
