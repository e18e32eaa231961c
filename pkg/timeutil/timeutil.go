// Package timeutil provides UTC calendar-window helpers. Challenge windows
// are always aligned to UTC day, ISO-week, and month boundaries so that
// repeated scheduler runs compute identical windows regardless of where the
// worker happens to run. No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// StartOfDay returns 00:00:00 UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the start of the following day. Windows are half-open:
// [StartOfDay, EndOfDay).
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// StartOfISOWeek returns Monday 00:00:00 UTC of the week containing t.
func StartOfISOWeek(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return StartOfDay(t).AddDate(0, 0, -(weekday - 1))
}

// EndOfISOWeek returns Monday 00:00:00 UTC of the following week.
func EndOfISOWeek(t time.Time) time.Time {
	return StartOfISOWeek(t).AddDate(0, 0, 7)
}

// StartOfMonth returns the first day of the month containing t, 00:00 UTC.
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns the first day of the following month, 00:00 UTC.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, 0)
}

// NextDayWindow returns the [start, end) window of the day after t.
func NextDayWindow(t time.Time) (time.Time, time.Time) {
	start := EndOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// NextWeekWindow returns the [start, end) window of the ISO week after t.
func NextWeekWindow(t time.Time) (time.Time, time.Time) {
	start := EndOfISOWeek(t)
	return start, start.AddDate(0, 0, 7)
}

// NextMonthWindow returns the [start, end) window of the month after t.
func NextMonthWindow(t time.Time) (time.Time, time.Time) {
	start := EndOfMonth(t)
	return start, start.AddDate(0, 1, 0)
}

// IsSameDay reports whether two times fall on the same UTC day.
func IsSameDay(t1, t2 time.Time) bool {
	a, b := t1.UTC(), t2.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// DaysBetween returns the absolute number of whole UTC days between two times.
func DaysBetween(t1, t2 time.Time) int {
	a := StartOfDay(t1)
	b := StartOfDay(t2)
	days := int(b.Sub(a).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
