package activity

import (
	"fmt"
	"time"
)

const (
	// SessionWindow matches the rolling session limit.
	SessionWindow = 5 * time.Hour

	// WeekWindow matches the weekly limit.
	WeekWindow = 7 * 24 * time.Hour
)

// ParseWindow accepts "session", "week" or any positive Go duration. An
// empty string means "session".
func ParseWindow(s string) (time.Duration, error) {
	switch s {
	case "", "session":
		return SessionWindow, nil
	case "week":
		return WeekWindow, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWindow, s)
	}
	return d, nil
}
