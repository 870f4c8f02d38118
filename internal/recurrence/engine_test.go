package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2024, month, d, 0, 0, 0, 0, time.UTC)
}

func TestEngine_Dates(t *testing.T) {
	t.Parallel()

	t.Run("respects weekday selections", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(0)
		// 2024-03-04 is a Monday.
		dates, err := engine.Dates(Rule{
			Frequency: FrequencyWeekly,
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
			StartsOn:  day(time.March, 4),
			EndsOn:    day(time.March, 15),
		})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{
			day(time.March, 4), day(time.March, 6), day(time.March, 8),
			day(time.March, 11), day(time.March, 13), day(time.March, 15),
		}, dates)
	})

	t.Run("weekly without weekdays repeats the first weekday", func(t *testing.T) {
		t.Parallel()

		dates, err := NewEngine(0).Dates(Rule{
			Frequency: FrequencyWeekly,
			StartsOn:  day(time.March, 6),
			EndsOn:    day(time.March, 27),
		})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(time.March, 6), day(time.March, 13), day(time.March, 20), day(time.March, 27)}, dates)
	})

	t.Run("daily includes both bounds", func(t *testing.T) {
		t.Parallel()

		dates, err := NewEngine(0).Dates(Rule{
			Frequency: FrequencyDaily,
			StartsOn:  day(time.February, 28),
			EndsOn:    day(time.March, 1),
		})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(time.February, 28), day(time.February, 29), day(time.March, 1)}, dates)
	})

	t.Run("daily filtered by weekdays", func(t *testing.T) {
		t.Parallel()

		dates, err := NewEngine(0).Dates(Rule{
			Frequency: FrequencyDaily,
			Weekdays:  []time.Weekday{time.Saturday, time.Sunday},
			StartsOn:  day(time.March, 4),
			EndsOn:    day(time.March, 10),
		})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(time.March, 9), day(time.March, 10)}, dates)
	})

	t.Run("ignores the time of day on bounds", func(t *testing.T) {
		t.Parallel()

		dates, err := NewEngine(0).Dates(Rule{
			Frequency: FrequencyDaily,
			StartsOn:  day(time.March, 4).Add(18 * time.Hour),
			EndsOn:    day(time.March, 5).Add(time.Hour),
		})
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day(time.March, 4), day(time.March, 5)}, dates)
	})

	t.Run("enforces the occurrence cap", func(t *testing.T) {
		t.Parallel()

		engine := NewEngine(3)
		_, err := engine.Dates(Rule{Frequency: FrequencyDaily, StartsOn: day(time.March, 1), EndsOn: day(time.March, 4)})
		require.ErrorIs(t, err, ErrTooManyOccurrences)

		dates, err := engine.Dates(Rule{Frequency: FrequencyDaily, StartsOn: day(time.March, 1), EndsOn: day(time.March, 3)})
		require.NoError(t, err)
		assert.Len(t, dates, 3)
	})

	t.Run("rejects inverted windows and missing frequency", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(0).Dates(Rule{Frequency: FrequencyDaily, StartsOn: day(time.March, 2), EndsOn: day(time.March, 1)})
		require.ErrorIs(t, err, ErrInvalidWindow)

		_, err = NewEngine(0).Dates(Rule{StartsOn: day(time.March, 1), EndsOn: day(time.March, 1)})
		require.ErrorIs(t, err, ErrInvalidFrequency)
	})
}

func TestParseFrequencyAndWeekdays(t *testing.T) {
	t.Parallel()

	freq, err := ParseFrequency(" Weekly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, freq)

	_, err = ParseFrequency("monthly")
	require.ErrorIs(t, err, ErrInvalidFrequency)

	days, err := ParseWeekdays([]string{"mon", "Wednesday", "SAT"})
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Saturday}, days)

	_, err = ParseWeekdays([]string{"funday"})
	require.ErrorIs(t, err, ErrInvalidWeekday)
}
