// Package calendar holds the pure date arithmetic behind budget periods and
// recurring schedules: weekend roll-back, period bounds for a configurable
// start day, and month/year stepping with a single clamping policy for short
// months.
//
// All functions operate on civil.Date so results never depend on the server
// timezone. The clamping policy is: a preferred day past the end of the target
// month clamps to that month's last day (Jan 31 + 1 month = Feb 28/29), and
// the preferred day is preserved by callers so the schedule returns to it in
// longer months.
package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDayOfMonth builds a date from year/month and a preferred day, clamping
// the day to the month's last day when the month is too short.
func ClampDayOfMonth(year int, month time.Month, day int) civil.Date {
	if day < 1 {
		day = 1
	}
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	return civil.Date{Year: year, Month: month, Day: day}
}

// Weekday returns the day of week for a civil date.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// PreviousWorkingDay rolls a date off the weekend: Saturday moves back one
// day, Sunday moves back two. Weekdays pass through unchanged, so the
// function is idempotent once a weekday is reached.
func PreviousWorkingDay(d civil.Date) civil.Date {
	switch Weekday(d) {
	case time.Saturday:
		return d.AddDays(-1)
	case time.Sunday:
		return d.AddDays(-2)
	}
	return d
}

// boundaryFor returns the weekend-adjusted period boundary for the given
// month: the start day clamped into the month, rolled back off weekends.
func boundaryFor(year int, month time.Month, startDay int) civil.Date {
	return PreviousWorkingDay(ClampDayOfMonth(year, month, startDay))
}

// PeriodBounds computes the budget period containing ref for a cycle that
// rolls over on startDay. If ref is on or after this month's adjusted
// boundary the period starts this month; otherwise it started last month.
// The period ends the day before the next month's adjusted boundary.
func PeriodBounds(ref civil.Date, startDay int) (start, end civil.Date) {
	thisMonth := boundaryFor(ref.Year, ref.Month, startDay)

	var next civil.Date
	if ref.Before(thisMonth) {
		prevY, prevM := addMonth(ref.Year, ref.Month, -1)
		start = boundaryFor(prevY, prevM, startDay)
		next = thisMonth
	} else {
		start = thisMonth
		nextY, nextM := addMonth(ref.Year, ref.Month, 1)
		next = boundaryFor(nextY, nextM, startDay)
	}
	end = next.AddDays(-1)
	return start, end
}

// addMonth steps a (year, month) pair by n months without touching days.
func addMonth(year int, month time.Month, n int) (int, time.Month) {
	m := int(month) - 1 + n
	y := year + m/12
	m %= 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// AddMonths advances d by n calendar months, aiming for preferredDay in the
// target month (clamped when the month is short). A preferredDay of 0 means
// "keep d's day".
func AddMonths(d civil.Date, n, preferredDay int) civil.Date {
	if preferredDay == 0 {
		preferredDay = d.Day
	}
	y, m := addMonth(d.Year, d.Month, n)
	return ClampDayOfMonth(y, m, preferredDay)
}

// AddYears advances d by n calendar years, aiming for preferredMonth and
// preferredDay (zero values mean "keep d's"). Only Feb 29 needs clamping.
func AddYears(d civil.Date, n int, preferredMonth time.Month, preferredDay int) civil.Date {
	if preferredMonth == 0 {
		preferredMonth = d.Month
	}
	if preferredDay == 0 {
		preferredDay = d.Day
	}
	return ClampDayOfMonth(d.Year+n, preferredMonth, preferredDay)
}

// DaysBetween returns b - a in days; negative when b is before a.
func DaysBetween(a, b civil.Date) int {
	return b.DaysSince(a)
}
