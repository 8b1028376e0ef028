package resettime

import (
	"time"

	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Resolver resolves reset phrases with an ordered matcher list.
type Resolver struct {
	matchers []Matcher
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the wall clock used by Resolve.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// withMatchers replaces the default matcher list.
func withMatchers(m ...Matcher) Option {
	return func(r *Resolver) {
		r.matchers = m
	}
}

// DefaultMatchers returns the built-in matchers in priority order:
// relative duration, simple clock time, then month/day/time.
func DefaultMatchers() []Matcher {
	return []Matcher{
		durationMatcher{},
		clockMatcher{},
		monthDayMatcher{},
	}
}

// New creates a Resolver with the default matchers and time.Now.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		matchers: DefaultMatchers(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves text against the resolver's clock.
func (r *Resolver) Resolve(text string, category Category) time.Time {
	return r.ResolveAt(text, category, r.now())
}

// ResolveAt resolves text relative to now.
func (r *Resolver) ResolveAt(text string, category Category, now time.Time) time.Time {
	return r.Explain(text, category, now).Time
}

// Explain resolves text relative to now and reports which matcher decided.
func (r *Resolver) Explain(text string, category Category, now time.Time) Resolution {
	if text != "" {
		for _, m := range r.matchers {
			if t, ok := m.Match(text, now); ok {
				return Resolution{Time: t, Matcher: m.Name()}
			}
		}
	}
	return Resolution{Time: usage.DefaultReset(category, now), Matcher: DefaultMatcher}
}

var std = New()

// ResolveAt resolves text relative to now with the default matchers.
func ResolveAt(text string, category Category, now time.Time) time.Time {
	return std.ResolveAt(text, category, now)
}
