package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStartEndOfDay(t *testing.T) {
	ts := time.Date(2026, 3, 10, 15, 30, 45, 123, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), EndOfDay(ts))
}

func TestStartOfDay_NormalizesZone(t *testing.T) {
	zone := time.FixedZone("UTC+5", 5*60*60)
	// 03:00 UTC+5 is 22:00 UTC the previous day.
	ts := time.Date(2026, 3, 10, 3, 0, 0, 0, zone)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
}

func TestStartOfISOWeek(t *testing.T) {
	// 2026-03-09 is a Monday.
	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	for d := 0; d < 7; d++ {
		got := StartOfISOWeek(monday.AddDate(0, 0, d).Add(13 * time.Hour))
		assert.Equal(t, monday, got, "day offset %d", d)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}

func TestStartOfISOWeek_SundayBelongsToPrecedingWeek(t *testing.T) {
	sunday := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), StartOfISOWeek(sunday))
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), EndOfISOWeek(sunday))
}

func TestStartEndOfMonth(t *testing.T) {
	ts := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StartOfMonth(ts))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), EndOfMonth(ts))
}

func TestEndOfMonth_YearRollover(t *testing.T) {
	ts := time.Date(2026, 12, 20, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), EndOfMonth(ts))
}

func TestNextDayWindow(t *testing.T) {
	start, end := NextDayWindow(time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), end)
}

func TestNextWeekWindow(t *testing.T) {
	// Tuesday 2026-03-10: next ISO week runs Monday 03-16 to Monday 03-23.
	start, end := NextWeekWindow(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 23, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Monday, start.Weekday())
}

func TestNextMonthWindow(t *testing.T) {
	start, end := NextMonthWindow(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestNextWindows_SameResultAcrossSourceWindow(t *testing.T) {
	// Any instant inside a window maps to the same next window.
	early := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)

	s1, e1 := NextWeekWindow(early)
	s2, e2 := NextWeekWindow(late)
	assert.Equal(t, s1, s2)
	assert.Equal(t, e1, e2)
}

func TestIsSameDay(t *testing.T) {
	assert.True(t, IsSameDay(
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC),
	))
	assert.False(t, IsSameDay(
		time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	))

	// Same wall-clock day in different zones can be different UTC days.
	zone := time.FixedZone("UTC+5", 5*60*60)
	assert.False(t, IsSameDay(
		time.Date(2026, 3, 10, 3, 0, 0, 0, zone),
		time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 3, 13, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, DaysBetween(a, b))
	assert.Equal(t, 3, DaysBetween(b, a), "order independent")
	assert.Equal(t, 0, DaysBetween(a, a))
}
