// Package termparse extracts usage percentages and reset phrases from the
// raw text the CLI paints into a pseudo-terminal.
//
// The captured text usually holds several full-screen redraws of the same
// view. Parse strips control sequences, splits the text into non-empty
// lines and, per section, reads the last redraw of the section header.
//
// Example usage:
//
//	res := termparse.Parse(raw)
//	fmt.Println(res.Session.Percentage, res.Session.ResetText)
package termparse

// Section labels, matched case-insensitively as substrings.
const (
	LabelSession = "current session"
	LabelWeekly  = "current week (all models)"
)

// ModelLabels are the model-specific section labels in priority order.
var ModelLabels = []string{
	"current week (opus)",
	"current week (sonnet only)",
	"current week (sonnet)",
}

// WindowSize is the number of lines, header included, inspected for a
// section's percentage and reset line.
const WindowSize = 5

// Section is what was read for one usage category.
type Section struct {
	// Label is the header label that located the section, empty when the
	// header was not found.
	Label string

	// Percentage is the used percentage in [0,100]. "left" and
	// "remaining" readings are converted to used. 0 when not found.
	Percentage float64

	// ResetText is the reset line with any trailing "(zone)" removed,
	// for display.
	ResetText string

	// RawResetText is the reset line as captured. It feeds the resolver.
	RawResetText string
}

// Found reports whether the section header was located.
func (s Section) Found() bool {
	return s.Label != ""
}

// Result holds the three parsed sections.
type Result struct {
	Session Section
	Weekly  Section
	Model   Section
}
