package recurrence

import (
	"errors"
	"strings"
	"time"
)

// Frequency represents supported recurrence intervals.
type Frequency int

const (
	// FrequencyUnspecified indicates the rule frequency is not set.
	FrequencyUnspecified Frequency = iota
	// FrequencyDaily generates a date for each day within the range.
	FrequencyDaily
	// FrequencyWeekly generates dates for the selected weekdays.
	FrequencyWeekly
)

// ErrInvalidFrequency indicates the recurrence frequency is not supported.
var ErrInvalidFrequency = errors.New("recurrence: invalid frequency")

// ErrInvalidWeekday indicates a weekday name could not be parsed.
var ErrInvalidWeekday = errors.New("recurrence: invalid weekday")

// ErrInvalidWindow indicates the series ends before it starts.
var ErrInvalidWindow = errors.New("recurrence: until must not be before the first date")

// ErrTooManyOccurrences indicates the series exceeds the configured cap.
var ErrTooManyOccurrences = errors.New("recurrence: too many occurrences")

// ParseFrequency maps "daily" and "weekly" to a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "daily":
		return FrequencyDaily, nil
	case "weekly":
		return FrequencyWeekly, nil
	default:
		return FrequencyUnspecified, ErrInvalidFrequency
	}
}

// ParseWeekdays accepts full or three-letter English weekday names.
func ParseWeekdays(values []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(values))
	for _, value := range values {
		day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(value))]
		if !ok {
			return nil, ErrInvalidWeekday
		}
		days = append(days, day)
	}
	return days, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// Rule describes a recurring set of calendar dates. Dates are midnight UTC
// values; the time of day is owned by the caller.
type Rule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	StartsOn  time.Time
	EndsOn    time.Time
}

// Engine expands recurrence rules into dates.
type Engine struct {
	maxOccurrences int
}

// NewEngine constructs an Engine that refuses to expand more than
// maxOccurrences dates. A non-positive cap means unlimited.
func NewEngine(maxOccurrences int) *Engine {
	return &Engine{maxOccurrences: maxOccurrences}
}

// Dates produces the dates selected by rule between StartsOn and EndsOn,
// both inclusive, in chronological order.
//
// Daily rules include every day, optionally filtered by Weekdays. Weekly
// rules include the selected Weekdays, or the weekday of StartsOn when none
// are given.
func (e *Engine) Dates(rule Rule) ([]time.Time, error) {
	first := midnight(rule.StartsOn)
	last := midnight(rule.EndsOn)
	if last.Before(first) {
		return nil, ErrInvalidWindow
	}

	weekdaySet := make(map[time.Weekday]struct{}, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		weekdaySet[day] = struct{}{}
	}
	if rule.Frequency == FrequencyWeekly && len(weekdaySet) == 0 {
		weekdaySet[first.Weekday()] = struct{}{}
	}

	dates := make([]time.Time, 0)
	for current := first; !current.After(last); current = current.AddDate(0, 0, 1) {
		include, err := shouldInclude(rule.Frequency, weekdaySet, current.Weekday())
		if err != nil {
			return nil, err
		}
		if !include {
			continue
		}
		if e.maxOccurrences > 0 && len(dates) == e.maxOccurrences {
			return nil, ErrTooManyOccurrences
		}
		dates = append(dates, current)
	}

	return dates, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func shouldInclude(freq Frequency, weekdaySet map[time.Weekday]struct{}, day time.Weekday) (bool, error) {
	switch freq {
	case FrequencyDaily:
		if len(weekdaySet) == 0 {
			return true, nil
		}
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyWeekly:
		_, ok := weekdaySet[day]
		return ok, nil
	case FrequencyUnspecified:
		fallthrough
	default:
		return false, ErrInvalidFrequency
	}
}
