package display

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0xmhha/quota-meter/pkg/activity"
	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

const timestampLayout = "2006-01-02 15:04:05"

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *tableFormatter) FormatSnapshot(w io.Writer, snap *usage.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}

	if err := writeHeader(w, "Claude Usage", f.config.Compact); err != nil {
		return err
	}

	now := f.config.Now()
	weeklyTokens := "-"
	if snap.WeeklyLimit > 0 {
		weeklyTokens = fmt.Sprintf("%s / %s",
			formatNumber(snap.WeeklyTokensUsed),
			formatNumber(snap.WeeklyLimit))
	}
	opusReset := snap.OpusResetText
	if opusReset == "" {
		opusReset = "-"
	}

	rows := [][]string{
		{
			"Session (5h)",
			f.bar(snap.SessionPercentage),
			formatPercent(snap.SessionPercentage),
			"-",
			resetCell(snap.SessionResetTime, snap.SessionResetText, now),
		},
		{
			"Weekly",
			f.bar(snap.WeeklyPercentage),
			formatPercent(snap.WeeklyPercentage),
			weeklyTokens,
			resetCell(snap.WeeklyResetTime, snap.WeeklyResetText, now),
		},
		{
			"Weekly (model)",
			f.bar(snap.OpusWeeklyPercentage),
			formatPercent(snap.OpusWeeklyPercentage),
			formatNumber(snap.OpusWeeklyTokensUsed),
			opusReset,
		},
	}

	if err := f.writeTable(w, []string{"Window", "Usage", "%", "Tokens", "Resets"}, rows); err != nil {
		return err
	}

	if snap.Cost != nil {
		if _, err := fmt.Fprintf(w, "Extra usage: %s\n",
			formatCost(snap.Cost.Used, snap.Cost.Limit, snap.Cost.Currency)); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "Source: %s  Updated: %s  Timezone: %s\n",
		snap.Source,
		snap.LastUpdated.Format(timestampLayout),
		snap.UserTimezone)
	return err
}

// FormatHistory implements Formatter.FormatHistory.
func (f *tableFormatter) FormatHistory(w io.Writer, entries []*history.Entry) error {
	if err := writeHeader(w, "Usage History", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		cost := "-"
		if e.Snapshot.Cost != nil {
			cost = formatCost(e.Snapshot.Cost.Used, e.Snapshot.Cost.Limit, e.Snapshot.Cost.Currency)
		}
		rows = append(rows, []string{
			e.CapturedAt.Local().Format(timestampLayout),
			formatPercent(e.Snapshot.SessionPercentage),
			formatPercent(e.Snapshot.WeeklyPercentage),
			formatPercent(e.Snapshot.OpusWeeklyPercentage),
			cost,
			string(e.Snapshot.Source),
		})
	}

	return f.writeTable(w, []string{"Captured", "Session", "Weekly", "Model", "Extra", "Source"}, rows)
}

// FormatActivity implements Formatter.FormatActivity.
func (f *tableFormatter) FormatActivity(w io.Writer, sum *activity.Summary) error {
	if sum == nil {
		return ErrNilSummary
	}

	if err := writeHeader(w, "Local Activity", f.config.Compact); err != nil {
		return err
	}

	rows := make([][]string, 0, len(sum.Models)+1)
	for _, m := range sum.Models {
		rows = append(rows, activityRow(m.Model, m.Requests, m.Tokens))
	}
	if len(sum.Models) > 1 {
		rows = append(rows, activityRow("Total", sum.Requests, sum.Tokens))
	}

	if err := f.writeTable(w, []string{"Model", "Requests", "Input", "Output", "Cache Write", "Cache Read", "Total"}, rows); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Window: %s - %s  Sessions: %d  Files: %d\n",
		sum.Since.Local().Format(timestampLayout),
		sum.Until.Local().Format(timestampLayout),
		sum.Sessions,
		sum.Files)
	return err
}

func activityRow(name string, requests int, t activity.Tokens) []string {
	return []string{
		name,
		formatNumber(int64(requests)),
		formatNumber(t.Input),
		formatNumber(t.Output),
		formatNumber(t.CacheCreation),
		formatNumber(t.CacheRead),
		formatNumber(t.Total()),
	}
}

func (f *tableFormatter) bar(pct float64) string {
	b := bar(pct)
	if !f.config.ColorEnabled {
		return b
	}
	return severityColor(pct) + b + colorReset
}

// resetCell renders "in 2h05m (Resets 3pm)" or just the countdown.
func resetCell(at time.Time, text string, now time.Time) string {
	if at.IsZero() {
		return "-"
	}
	cell := "in " + formatDuration(at.Sub(now))
	if text != "" {
		cell += " (" + text + ")"
	}
	return cell
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = visibleLen(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && visibleLen(cell) > widths[i] {
				widths[i] = visibleLen(cell)
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row. The last cell is not padded.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	gap := "  "
	if f.config.Compact {
		gap = " "
	}

	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString(gap)
		}
		b.WriteString(cell)
		if i < len(cells)-1 && i < len(widths) {
			b.WriteString(strings.Repeat(" ", widths[i]-visibleLen(cell)))
		}
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

// visibleLen counts runes, ignoring color escape sequences.
func visibleLen(s string) int {
	return utf8.RuneCountInString(ansiPattern.ReplaceAllString(s, ""))
}
