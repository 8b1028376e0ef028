package termparse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const screen = "\x1b[2J\x1b[H" +
	"\x1b[1mSettings:\x1b[22m  Status   Config   \x1b[7mUsage\x1b[27m\r\n" +
	"\r\n" +
	" \x1b[1mCurrent\x1b[1Csession\x1b[22m\r\n" +
	" \x1b[38;5;75m█████\x1b[39m                     12% used\r\n" +
	" Resets 5am (Europe/Berlin)\r\n" +
	"\r\n" +
	" \x1b[1mCurrent week (all models)\x1b[22m\r\n" +
	" \x1b[38;5;75m████████\x1b[39m                  40% used\r\n" +
	" Resets Jan 15, 3:30pm (Europe/Berlin)\r\n" +
	"\r\n" +
	" \x1b[1mCurrent week (Opus)\x1b[22m\r\n" +
	" ██                                7% used\r\n" +
	" Resets Jan 15, 3:30pm (Europe/Berlin)\r\n" +
	"\r\n" +
	" \x1b]0;claude\x07Esc to cancel\r\n"

func TestStripANSI(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"sgr", "\x1b[1;31mred\x1b[0m", "red"},
		{"cursor forward becomes space", "Current\x1b[1Csession", "Current session"},
		{"cursor forward without count", "a\x1b[Cb", "a b"},
		{"osc title", "\x1b]0;title\x07text", "text"},
		{"osc with st", "\x1b]8;;http://x\x1b\\link", "link"},
		{"private mode", "\x1b[?25lhidden\x1b[?25h", "hidden"},
		{"two char", "\x1b7saved\x1b8", "saved"},
		{"charset", "\x1b(Bascii", "ascii"},
		{"control chars dropped", "a\x00b\x07c", "abc"},
		{"newlines kept", "a\r\nb\tc", "a\r\nb\tc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripANSI(tt.in))
		})
	}
}

func TestLines(t *testing.T) {
	got := Lines("  one \r\n\r\ntwo\rthree\n   \nfour")
	assert.Equal(t, []string{"one", "two", "three", "four"}, got)
	assert.Empty(t, Lines(" \n\r\n"))
}

func TestParseScreen(t *testing.T) {
	res := Parse(screen)

	// Blank lines are dropped, so each five line window reaches the
	// percentage of the section below it.
	assert.Equal(t, LabelSession, res.Session.Label)
	assert.Equal(t, 40.0, res.Session.Percentage)
	assert.Equal(t, "Resets 5am", res.Session.ResetText)
	assert.Equal(t, "Resets 5am (Europe/Berlin)", res.Session.RawResetText)

	assert.Equal(t, 7.0, res.Weekly.Percentage)
	assert.Equal(t, "Resets Jan 15, 3:30pm", res.Weekly.ResetText)

	assert.Equal(t, "current week (opus)", res.Model.Label)
	assert.Equal(t, 7.0, res.Model.Percentage)
	assert.Equal(t, "Resets Jan 15, 3:30pm (Europe/Berlin)", res.Model.RawResetText)
}

func TestUsedAndLeftAgree(t *testing.T) {
	for p := 0; p <= 100; p++ {
		used := Parse(fmt.Sprintf("Current session\n%d%% used\n", p))
		left := Parse(fmt.Sprintf("Current session\n%d%% left\n", 100-p))
		remaining := Parse(fmt.Sprintf("Current session\n%d%% remaining\n", 100-p))

		require.Equal(t, used.Session.Percentage, left.Session.Percentage, "p=%d", p)
		require.Equal(t, used.Session.Percentage, remaining.Session.Percentage, "p=%d", p)
		require.Equal(t, float64(p), used.Session.Percentage)
	}
}

func TestLastRedrawWins(t *testing.T) {
	var b strings.Builder
	for _, pct := range []int{10, 20, 30} {
		fmt.Fprintf(&b, "\x1b[H Current session\r\n %d%% used\r\n Resets in %dh\r\n", pct, pct/10)
	}

	res := Parse(b.String())
	assert.Equal(t, 30.0, res.Session.Percentage)
	assert.Equal(t, "Resets in 3h", res.Session.RawResetText)
}

func TestLastMatchInWindowWins(t *testing.T) {
	raw := strings.Join([]string{
		"Current session",
		"5% used",
		"Resets 1am",
		"15% used",
		"Resets 2am",
		"99% used", // outside the five line window
	}, "\n")

	res := Parse(raw)
	assert.Equal(t, 15.0, res.Session.Percentage)
	assert.Equal(t, "Resets 2am", res.Session.RawResetText)
}

func TestWindowRunsIntoNextSection(t *testing.T) {
	raw := strings.Join([]string{
		"Current session",
		"12% used",
		"Resets 5am",
		"Current week (all models)",
		"40% used",
		"Resets Jan 15, 3:30pm",
	}, "\n")

	res := Parse(raw)
	assert.Equal(t, 40.0, res.Session.Percentage)
	assert.Equal(t, "Resets 5am", res.Session.RawResetText)

	assert.Equal(t, 40.0, res.Weekly.Percentage)
	assert.Equal(t, "Resets Jan 15, 3:30pm", res.Weekly.RawResetText)
}

func TestWindowReadsNextSectionReset(t *testing.T) {
	raw := strings.Join([]string{
		"Current session",
		"12% used",
		"Current week (all models)",
		"40% used",
		"Resets Mon 1pm",
	}, "\n")

	res := Parse(raw)
	assert.Equal(t, 40.0, res.Session.Percentage)
	assert.Equal(t, "Resets Mon 1pm", res.Session.RawResetText)
	assert.Equal(t, 40.0, res.Weekly.Percentage)
}

// block renders one section padded to a full window so the next section's
// readings fall outside it.
func block(header, pct string) []string {
	return []string{header, pct, "Resets Jan 1, 1am", "████████", "────────"}
}

func concat(blocks ...[]string) []string {
	var out []string
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

func TestModelFallback(t *testing.T) {
	tests := []struct {
		name      string
		lines     []string
		wantLabel string
		wantPct   float64
	}{
		{
			name:      "opus first",
			lines:     concat(block("Current week (Opus)", "8% used"), block("Current week (Sonnet only)", "30% used")),
			wantLabel: "current week (opus)",
			wantPct:   8,
		},
		{
			name:      "opus zero falls to sonnet only",
			lines:     concat(block("Current week (Opus)", "0% used"), block("Current week (Sonnet only)", "30% used")),
			wantLabel: "current week (sonnet only)",
			wantPct:   30,
		},
		{
			name: "first two zero falls to sonnet",
			lines: concat(
				block("Current week (Opus)", "100% left"),
				block("Current week (Sonnet only)", "0% used"),
				block("Current week (Sonnet)", "55% used"),
			),
			wantLabel: "current week (sonnet)",
			wantPct:   55,
		},
		{
			name:      "adjacent sections share a window",
			lines:     []string{"Current week (Opus)", "0% used", "Current week (Sonnet only)", "30% used"},
			wantLabel: "current week (opus)",
			wantPct:   30,
		},
		{
			name:      "all zero keeps first located",
			lines:     []string{"Current week (Sonnet only)", "0% used", "Resets Jan 1, 1am"},
			wantLabel: "current week (sonnet only)",
			wantPct:   0,
		},
		{
			name:  "absent",
			lines: []string{"Current session", "3% used"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(strings.Join(tt.lines, "\n"))
			assert.Equal(t, tt.wantLabel, res.Model.Label)
			assert.Equal(t, tt.wantPct, res.Model.Percentage)
		})
	}
}

func TestMissingHeader(t *testing.T) {
	res := Parse("nothing to see here\n42% used")

	assert.False(t, res.Session.Found())
	assert.Equal(t, 0.0, res.Session.Percentage)
	assert.Empty(t, res.Session.ResetText)
	assert.False(t, res.Weekly.Found())
}

func TestParsePercentage(t *testing.T) {
	tests := []struct {
		line   string
		want   float64
		wantOK bool
	}{
		{"12% used", 12, true},
		{"12 % USED", 12, true},
		{"25% left", 75, true},
		{"0% remaining", 100, true},
		{"150% used", 100, true},
		{"12%", 0, false},
		{"used", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParsePercentage(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripZone(t *testing.T) {
	assert.Equal(t, "Resets 5am", StripZone("Resets 5am (Europe/Berlin)"))
	assert.Equal(t, "Resets 5am", StripZone("Resets 5am"))
	assert.Equal(t, "Resets (soon) 5am", StripZone("Resets (soon) 5am"))
}

func BenchmarkParse(b *testing.B) {
	raw := strings.Repeat(screen, 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Parse(raw)
	}
}
