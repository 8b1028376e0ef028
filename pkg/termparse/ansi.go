package termparse

import (
	"regexp"
	"strings"
)

var (
	// Cursor-forward moves are how the TUI spaces words apart.
	cursorForwardPattern = regexp.MustCompile(`\x1b\[\d*C`)

	ansiPattern = regexp.MustCompile(
		`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)` + // OSC
			`|\x1b[PX^_][^\x1b]*\x1b\\` + // DCS, SOS, PM, APC
			`|\x1b\[[0-?]*[ -/]*[@-~]` + // CSI
			`|\x1b[()*+][0-9A-Za-z]` + // charset designation
			`|\x1b[@-Z\\-_=>78]`, // two-character sequences
	)

	lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// StripANSI removes ANSI/VT escape sequences and stray control characters.
// Newlines, carriage returns and tabs are kept.
func StripANSI(s string) string {
	s = cursorForwardPattern.ReplaceAllString(s, " ")
	s = ansiPattern.ReplaceAllString(s, "")

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

// Lines splits s on CR, LF and CRLF and returns the trimmed, non-empty
// lines in order.
func Lines(s string) []string {
	raw := strings.Split(lineBreaks.Replace(s), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
