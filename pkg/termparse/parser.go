package termparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/0xmhha/quota-meter/pkg/usage"
)

var (
	percentPattern = regexp.MustCompile(`(?i)(\d{1,3})\s*%\s*(left|used|remaining)`)

	trailingZonePattern = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
)

// Parse reads the session, weekly and model-specific sections from raw
// captured terminal output.
func Parse(raw string) Result {
	lines := Lines(StripANSI(raw))

	return Result{
		Session: ParseSection(lines, LabelSession),
		Weekly:  ParseSection(lines, LabelWeekly),
		Model:   parseModel(lines),
	}
}

// parseModel tries ModelLabels in order and returns the first section with
// a nonzero percentage. A zero reading counts as not found. When every
// label reads zero, the first located section is returned.
func parseModel(lines []string) Section {
	var fallback Section
	for _, label := range ModelLabels {
		sec := ParseSection(lines, label)
		if sec.Percentage != 0 {
			return sec
		}
		if !fallback.Found() && sec.Found() {
			fallback = sec
		}
	}
	return fallback
}

// ParseSection locates the last occurrence of label in lines and reads the
// window that starts at it. Within the window every matching line
// overwrites the previous reading, so the last match wins.
func ParseSection(lines []string, label string) Section {
	start := FindHeader(lines, label)
	if start < 0 {
		return Section{}
	}

	sec := Section{Label: label}
	for _, line := range window(lines, start) {
		if pct, ok := ParsePercentage(line); ok {
			sec.Percentage = pct
		}
		if strings.Contains(strings.ToLower(line), "reset") {
			sec.RawResetText = line
			sec.ResetText = StripZone(line)
		}
	}
	return sec
}

// FindHeader scans lines from the end and returns the index of the first
// line containing label, case-insensitively. -1 when absent.
func FindHeader(lines []string, label string) int {
	label = strings.ToLower(label)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(strings.ToLower(lines[i]), label) {
			return i
		}
	}
	return -1
}

// window returns the WindowSize lines starting at start. It does not stop
// at the next section's header, so a following section's readings can
// overwrite this one's.
func window(lines []string, start int) []string {
	end := start + WindowSize
	if end > len(lines) {
		end = len(lines)
	}
	return lines[start:end]
}

// ParsePercentage reads "<n>% used|left|remaining" from line and returns
// the used percentage. left and remaining are converted with 100 - n.
func ParsePercentage(line string) (float64, bool) {
	m := percentPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if !strings.EqualFold(m[2], "used") {
		v = 100 - v
	}
	return usage.Clamp(v), true
}

// StripZone removes a trailing parenthetical such as "(Europe/Berlin)".
func StripZone(text string) string {
	return strings.TrimSpace(trailingZonePattern.ReplaceAllString(text, ""))
}
