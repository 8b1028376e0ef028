// Package resettime turns free-text "resets in/at ..." phrases scraped from
// the CLI into absolute timestamps.
//
// A Resolver holds an ordered list of independent Matchers. Matchers are
// tried in order and the first one that recognizes the text decides the
// result; later matchers are not consulted. Text no matcher recognizes
// resolves to the category default from usage.DefaultReset.
//
// Example usage:
//
//	r := resettime.New()
//	at := r.ResolveAt("Resets in 2h 15m", usage.CategorySession, time.Now())
package resettime

import (
	"time"

	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Matcher recognizes one family of reset phrases.
type Matcher interface {
	// Name identifies the matcher in logs and tests.
	Name() string

	// Match returns the absolute reset instant described by text, relative
	// to now. The second result is false when the text is not recognized.
	//
	// Matchers must not mutate shared state; they are called concurrently.
	Match(text string, now time.Time) (time.Time, bool)
}

// Resolution is the outcome of resolving one phrase.
type Resolution struct {
	// Time is the resolved reset instant. Never zero.
	Time time.Time

	// Matcher is the name of the matcher that recognized the text, or
	// DefaultMatcher when the category fallback was used.
	Matcher string
}

// DefaultMatcher names the category fallback in a Resolution.
const DefaultMatcher = "default"

// Category is re-exported for callers that only import this package.
type Category = usage.Category
