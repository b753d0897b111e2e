// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// RelativeTime returns a human-readable relative time string such as
// "in 8 hours" or "2 days ago".
func RelativeTime(t time.Time) string {
	return RelativeTimeWithNow(t, time.Now())
}

// RelativeTimeWithNow is RelativeTime with an explicit reference time,
// for deterministic tests.
func RelativeTimeWithNow(t, now time.Time) string {
	diff := t.Sub(now)
	abs := diff
	if abs < 0 {
		abs = -abs
	}

	if abs < time.Minute {
		if diff > 0 {
			return "in less than a minute"
		}
		return "less than a minute ago"
	}

	var value int
	var unit string
	switch {
	case abs < time.Hour:
		value = int(abs.Minutes())
		unit = "minute"
	case abs < 24*time.Hour:
		value = int(abs.Hours())
		unit = "hour"
	default:
		value = int(abs.Hours()) / 24
		unit = "day"
	}
	if value != 1 {
		unit += "s"
	}

	if diff > 0 {
		return fmt.Sprintf("in %d %s", value, unit)
	}
	return fmt.Sprintf("%d %s ago", value, unit)
}

// FormatExpiration returns "Expires in 8 hours" or "Expired 2 days ago".
func FormatExpiration(t time.Time) string {
	return FormatExpirationWithNow(t, time.Now())
}

// FormatExpirationWithNow is FormatExpiration with an explicit
// reference time.
func FormatExpirationWithNow(t, now time.Time) string {
	if t.After(now) {
		return fmt.Sprintf("Expires %s", RelativeTimeWithNow(t, now))
	}
	return fmt.Sprintf("Expired %s", RelativeTimeWithNow(t, now))
}
