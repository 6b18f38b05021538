// Package session tracks the UTC trading day. Crypto spot trades around the
// clock, so the only session boundary that matters is midnight UTC, where
// the daily profit counter resets.
package session

import (
	"fmt"
	"time"
)

// DayTracker detects UTC calendar-day changes from event timestamps. The
// rollover is noticed on the first event of the new day, not at midnight.
// Not safe for concurrent use.
type DayTracker struct {
	day  time.Time // midnight UTC of the current day; zero until first Observe
	seen bool
}

// Observe records t and reports whether its UTC date differs from the
// previous observation. The first call only records the day.
func (d *DayTracker) Observe(t time.Time) bool {
	day := DayOf(t)
	if !d.seen {
		d.day, d.seen = day, true
		return false
	}
	if day.Equal(d.day) {
		return false
	}
	d.day = day
	return true
}

// Day returns the midnight UTC of the current day, or zero before the first
// observation.
func (d *DayTracker) Day() time.Time { return d.day }

// DayOf returns midnight UTC of t's date.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextReset returns the next midnight UTC after t.
func NextReset(t time.Time) time.Time {
	return DayOf(t).AddDate(0, 0, 1)
}

// TimeUntilReset returns the duration until the next daily reset.
func TimeUntilReset(t time.Time) time.Duration {
	return NextReset(t).Sub(t)
}

// StatusString returns a human-readable day status.
func StatusString(t time.Time) string {
	return fmt.Sprintf("UTC day %s, resets in %s", DayOf(t).Format("2006-01-02"), fmtDur(TimeUntilReset(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
