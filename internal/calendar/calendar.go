// Package calendar is pure date arithmetic for the quiz: day keys,
// UTC-anchored day numbers, and monthly anniversary occurrences.
// Everything here is timezone-explicit; the local device clock is
// never consulted for a day boundary.
package calendar

import (
	"fmt"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Date is an immutable calendar date. Month is 1..12.
type Date struct {
	Year  int
	Month int
	Day   int
}

// Key renders the canonical YYYY-MM-DD day key.
func (d Date) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseKey parses a YYYY-MM-DD day key.
func ParseKey(key string) (Date, error) {
	t, err := time.ParseInLocation("2006-01-02", key, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("parse day key %q: %w", key, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// Compare orders dates lexicographically by (year, month, day).
func (d Date) Compare(other Date) int {
	if d.Year != other.Year {
		return sign(d.Year - other.Year)
	}
	if d.Month != other.Month {
		return sign(d.Month - other.Month)
	}
	return sign(d.Day - other.Day)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// dayNumber is the proleptic count of days since the Unix epoch,
// anchored at UTC midnight so DST never shifts the result.
func (d Date) dayNumber() int {
	t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
	return int(t.Unix() / secondsPerDay)
}

// DaysBetween counts calendar days from a to b, signed.
func DaysBetween(a, b Date) int {
	return b.dayNumber() - a.dayNumber()
}

// DateOf extracts the calendar date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: int(local.Month()), Day: local.Day()}
}

// TodayIn resolves "today" in a named timezone, so both partners see
// the same day boundary regardless of device locale.
func TodayIn(zoneID string) (Date, error) {
	loc, err := time.LoadLocation(zoneID)
	if err != nil {
		return Date{}, fmt.Errorf("load timezone %q: %w", zoneID, err)
	}
	return DateOf(time.Now(), loc), nil
}

// DaysInMonth returns the length of the given month (month is 1..12).
func DaysInMonth(year, month int) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// OccurrenceInMonth places the monthly anniversary inside one target
// month: the preferred day, clamped to the month's length. The clamp
// is evaluated per month, so February's 28th never sticks to March.
func OccurrenceInMonth(year, month, preferredDay int) Date {
	day := preferredDay
	if dim := DaysInMonth(year, month); day > dim {
		day = dim
	}
	return Date{Year: year, Month: month, Day: day}
}

// MonthsBetween counts whole month steps from a's month to b's month,
// ignoring the day component.
func MonthsBetween(a, b Date) int {
	return (b.Year-a.Year)*12 + (b.Month - a.Month)
}

func addMonths(year, month, delta int) (int, int) {
	idx := year*12 + (month - 1) + delta
	y := idx / 12
	m := idx%12 + 1
	if idx < 0 && idx%12 != 0 {
		y--
		m += 12
	}
	return y, m
}

// MonthlyOccurrences generates count successive monthly anniversary
// dates on or after both start and from. Each month's occurrence falls
// on min(preferredDay, days in that month). The walk starts at the
// later of the two months and advances until the clamped day clears
// both bounds, which covers "this month's date already passed".
func MonthlyOccurrences(start, from Date, preferredDay, count int) []Date {
	if count <= 0 {
		return nil
	}

	y, m := from.Year, from.Month
	if from.Year < start.Year || (from.Year == start.Year && from.Month < start.Month) {
		y, m = start.Year, start.Month
	}

	for {
		occ := OccurrenceInMonth(y, m, preferredDay)
		if occ.Compare(start) >= 0 && occ.Compare(from) >= 0 {
			break
		}
		y, m = addMonths(y, m, 1)
	}

	out := make([]Date, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, OccurrenceInMonth(y, m, preferredDay))
		y, m = addMonths(y, m, 1)
	}
	return out
}
