package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_FieldCount(t *testing.T) {
	_, err := ParseCronExpression("* * * *")
	assert.Error(t, err)

	_, err = ParseCronExpression("* * * * * *")
	assert.Error(t, err)

	_, err = ParseCronExpression("")
	assert.Error(t, err)
}

func TestParseCronExpression_InvalidValues(t *testing.T) {
	_, err := ParseCronExpression("60 * * * *")
	assert.Error(t, err, "minute out of range")

	_, err = ParseCronExpression("* 24 * * *")
	assert.Error(t, err, "hour out of range")

	_, err = ParseCronExpression("x * * * *")
	assert.Error(t, err)

	_, err = ParseCronExpression("*/0 * * * *")
	assert.Error(t, err, "zero step")
}

func TestCronNext_Hourly(t *testing.T) {
	ce, err := ParseCronExpression(EveryHour)
	require.NoError(t, err)

	after := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)
	next := ce.Next(after)

	assert.Equal(t, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), next)
}

func TestCronNext_Every5Minutes(t *testing.T) {
	ce := MustParseCronExpression(Every5Minutes)

	after := time.Date(2026, 3, 1, 12, 2, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC), ce.Next(after))

	// Exactly on a match: next fires on the following slot.
	after = time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 10, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNext_DailyAtTime(t *testing.T) {
	ce := MustParseCronExpression("0 21 * * *")

	// Before 21:00 same day.
	after := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 21, 0, 0, 0, time.UTC), ce.Next(after))

	// After 21:00 rolls to the next day.
	after = time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronNext_Weekday(t *testing.T) {
	ce := MustParseCronExpression(EveryMonday)

	// 2026-03-01 is a Sunday; next Monday midnight is 03-02.
	after := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next := ce.Next(after)

	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())
}

func TestCronNext_FirstOfMonth(t *testing.T) {
	ce := MustParseCronExpression(FirstOfMonth)

	after := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), ce.Next(after))
}

func TestCronFields_ListAndRange(t *testing.T) {
	ce, err := ParseCronExpression("0 9-11 * * *")
	require.NoError(t, err)
	after := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC), ce.Next(after))

	ce, err = ParseCronExpression("15,45 * * * *")
	require.NoError(t, err)
	after = time.Date(2026, 3, 1, 10, 20, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 45, 0, 0, time.UTC), ce.Next(after))
}

func TestCronString(t *testing.T) {
	ce := MustParseCronExpression("0 * * * *")
	assert.Equal(t, "0 * * * *", ce.String())
}

func TestMustParseCronExpression_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustParseCronExpression("not a cron")
	})
}
