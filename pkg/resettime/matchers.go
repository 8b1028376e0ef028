package resettime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "2h 15m", "3 hours 5 min", "1hr"
	hoursPattern = regexp.MustCompile(`(?i)\b(\d+)\s*h(?:ours?|rs?)?\b(?:\s*(\d+)\s*m(?:in(?:ute)?s?)?\b)?`)

	// "45m", "10 min", "5 minutes"
	minutesPattern = regexp.MustCompile(`(?i)\b(\d+)\s*m(?:in(?:ute)?s?)?\b`)

	// "resets 11am", "Resets 5:30 pm"
	clockPattern = regexp.MustCompile(`(?i)\bresets?\s+(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

	// "Jan 15, 3:30pm", "Feb 2 at 9am", "Jan 4, 2026, 12:59am"
	monthDayPattern = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2}),?\s+(?:(\d{4}),?\s+)?(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

	// trailing "(Europe/Berlin)"
	zonePattern = regexp.MustCompile(`\(([^()]+)\)\s*$`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

type durationMatcher struct{}

func (durationMatcher) Name() string { return "duration" }

func (durationMatcher) Match(text string, now time.Time) (time.Time, bool) {
	if m := hoursPattern.FindStringSubmatch(text); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes := 0
		if m[2] != "" {
			minutes, _ = strconv.Atoi(m[2])
		}
		return now.Add(time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute), true
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		return now.Add(time.Duration(minutes) * time.Minute), true
	}
	return time.Time{}, false
}

type clockMatcher struct{}

func (clockMatcher) Name() string { return "clock" }

func (clockMatcher) Match(text string, now time.Time) (time.Time, bool) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	hour, minute, ok := clock(m[1], m[2], m[3])
	if !ok {
		return time.Time{}, false
	}

	local := now.In(zoneOf(text, now.Location()))
	t := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, local.Location())
	if t.Before(local) {
		t = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, local.Location())
	}
	return t, true
}

type monthDayMatcher struct{}

func (monthDayMatcher) Name() string { return "month-day" }

func (monthDayMatcher) Match(text string, now time.Time) (time.Time, bool) {
	m := monthDayPattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	month := months[strings.ToLower(m[1])]
	day, _ := strconv.Atoi(m[2])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	hour, minute, ok := clock(m[4], m[5], m[6])
	if !ok {
		return time.Time{}, false
	}

	local := now.In(zoneOf(text, now.Location()))
	if m[3] != "" {
		year, _ := strconv.Atoi(m[3])
		return time.Date(year, month, day, hour, minute, 0, 0, local.Location()), true
	}

	t := time.Date(local.Year(), month, day, hour, minute, 0, 0, local.Location())
	if t.Before(local) {
		t = time.Date(local.Year()+1, month, day, hour, minute, 0, 0, local.Location())
	}
	return t, true
}

// clock converts a 12-hour reading to 24-hour values. 12am is hour 0 and
// 12pm is hour 12.
func clock(h, m, meridiem string) (int, int, bool) {
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}
	minute := 0
	if m != "" {
		minute, err = strconv.Atoi(m)
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}

	pm := strings.EqualFold(meridiem, "pm")
	switch {
	case pm && hour != 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return hour, minute, true
}

// zoneOf returns the location named by a trailing parenthetical, or
// fallback when there is none or it is not a known zone.
func zoneOf(text string, fallback *time.Location) *time.Location {
	m := zonePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return fallback
	}
	loc, err := time.LoadLocation(strings.TrimSpace(m[1]))
	if err != nil {
		return fallback
	}
	return loc
}
