package scheduler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidTime is returned for malformed or out-of-day times of day.
	ErrInvalidTime = errors.New("scheduler: invalid time of day")
	// ErrInvalidDate is returned when an interval has no calendar date.
	ErrInvalidDate = errors.New("scheduler: invalid date")
	// ErrEmptyInterval is returned for zero-length or inverted intervals.
	ErrEmptyInterval = errors.New("scheduler: start must be before end")
	// ErrIncrement is returned when a duration is not a whole number of booking increments.
	ErrIncrement = errors.New("scheduler: duration must be a multiple of the booking increment")
)

// TimeOfDay is a wall-clock time expressed in minutes after midnight.
type TimeOfDay int

// EndOfDay is the exclusive upper bound of a day, written as "24:00".
const EndOfDay TimeOfDay = 24 * 60

// NewTimeOfDay builds a TimeOfDay from hour and minute components.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted as the end of the day.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	hourPart, minutePart, ok := strings.Cut(value, ":")
	if !ok || len(minutePart) != 2 || hourPart == "" || len(hourPart) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, value)
	}
	return NewTimeOfDay(hour, minute), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return parsed, nil
}

// TruncateDate returns the calendar date of t as midnight UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateIn returns the calendar date of the instant as observed in loc.
func DateIn(instant time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return TruncateDate(instant.In(loc))
}

// Interval is a start/end window on a single calendar date.
type Interval struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

// NewInterval validates and constructs an interval. The duration must be a
// positive multiple of increment; a non-positive increment disables that check.
func NewInterval(date time.Time, start, end TimeOfDay, increment time.Duration) (Interval, error) {
	if date.IsZero() {
		return Interval{}, ErrInvalidDate
	}
	if start < 0 || start >= EndOfDay || end < 0 || end > EndOfDay {
		return Interval{}, ErrInvalidTime
	}
	if start >= end {
		return Interval{}, ErrEmptyInterval
	}
	if step := int(increment / time.Minute); step > 1 && int(end-start)%step != 0 {
		return Interval{}, ErrIncrement
	}
	return Interval{Date: TruncateDate(date), Start: start, End: end}, nil
}

// Minutes returns the length of the interval in minutes.
func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.Minutes()) * time.Minute
}

// DurationHours returns the length of the interval in hours.
func (i Interval) DurationHours() float64 {
	return float64(i.Minutes()) / 60
}

// StartAt resolves the interval start to an instant in loc.
func (i Interval) StartAt(loc *time.Location) time.Time {
	return i.at(i.Start, loc)
}

// EndAt resolves the interval end to an instant in loc.
func (i Interval) EndAt(loc *time.Location) time.Time {
	return i.at(i.End, loc)
}

func (i Interval) at(t TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := i.Date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc)
}

// Contains reports whether instant falls within [start, end) in loc.
func (i Interval) Contains(instant time.Time, loc *time.Location) bool {
	start := i.StartAt(loc)
	end := i.EndAt(loc)
	return !instant.Before(start) && instant.Before(end)
}

// SameDate reports whether both intervals are on the same calendar date.
func (i Interval) SameDate(other Interval) bool {
	return TruncateDate(i.Date).Equal(TruncateDate(other.Date))
}

// DateString formats the interval date.
func (i Interval) DateString() string {
	return i.Date.Format(DateLayout)
}

func (i Interval) String() string {
	return fmt.Sprintf("%s %s-%s", i.DateString(), i.Start, i.End)
}

// Overlaps reports whether a and b share any instant. Intervals that only
// touch at an endpoint do not overlap.
func Overlaps(a, b Interval) bool {
	return a.SameDate(b) && a.Start < b.End && b.Start < a.End
}

// SlotKey identifies the unit of reservation serialization.
type SlotKey struct {
	ResourceID string
	SlotNumber int
	Date       time.Time
}

// KeyFor returns the serialization key for an interval on a resource slot.
func KeyFor(resourceID string, slotNumber int, interval Interval) SlotKey {
	return SlotKey{ResourceID: resourceID, SlotNumber: slotNumber, Date: TruncateDate(interval.Date)}
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s|%d|%s", k.ResourceID, k.SlotNumber, k.Date.Format(DateLayout))
}
