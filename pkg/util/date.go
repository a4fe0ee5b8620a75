package util

import (
	"fmt"
	"time"
)

// IsWeekday reports whether t falls Monday through Friday in its own location.
func IsWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// PreviousSession returns the latest weekday strictly before t's calendar day.
// Exchange holidays are not modelled.
func PreviousSession(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for !IsWeekday(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// AddSessions moves t forward by n weekdays.
func AddSessions(t time.Time, n int) time.Time {
	d := t
	for n > 0 {
		d = d.AddDate(0, 0, 1)
		if IsWeekday(d) {
			n--
		}
	}
	return d
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NextWeekdayAt returns the first weekday instant at hour:minute in loc strictly after now.
func NextWeekdayAt(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	for !next.After(local) || !IsWeekday(next) {
		next = time.Date(next.Year(), next.Month(), next.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
