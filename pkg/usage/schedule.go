package usage

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SessionWindow is the default distance to a session reset when upstream
// does not say when the window ends.
const SessionWindow = 5 * time.Hour

// Weekly resets default to Monday at 12:59 in the caller's location.
const (
	weeklyResetHour   = 12
	weeklyResetMinute = 59
)

// NextWeeklyReset returns the upcoming Monday at 12:59 in now's location.
// On a Monday it returns the following Monday, never today.
func NextWeeklyReset(now time.Time) time.Time {
	days := (int(time.Monday) + 7 - int(now.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return time.Date(now.Year(), now.Month(), now.Day()+days,
		weeklyResetHour, weeklyResetMinute, 0, 0, now.Location())
}

// DefaultReset returns the fallback reset instant for a category:
// now + SessionWindow for sessions, NextWeeklyReset otherwise.
func DefaultReset(category Category, now time.Time) time.Time {
	if category == CategorySession {
		return now.Add(SessionWindow)
	}
	return NextWeeklyReset(now)
}

// LocalTimezone returns the IANA name of the local zone when it can be
// determined, else the zone abbreviation.
func LocalTimezone() string {
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	if tz := os.Getenv("TZ"); tz != "" {
		return strings.TrimPrefix(tz, ":")
	}
	if target, err := os.Readlink("/etc/localtime"); err == nil {
		if i := strings.Index(target, "zoneinfo/"); i >= 0 {
			return filepath.ToSlash(target[i+len("zoneinfo/"):])
		}
	}
	name, _ := time.Now().Zone()
	return name
}
