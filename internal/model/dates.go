package model

import "time"

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// MonthStart returns the first day of t's month at midnight.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd returns the last instant of t's month.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// PeriodDays counts the calendar days in the inclusive range [start, end].
func PeriodDays(start, end time.Time) int {
	days := int(StartOfDay(end).Sub(StartOfDay(start)).Hours()/24+0.5) + 1
	if days < 1 {
		return 1
	}
	return days
}

// PreviousPeriod returns the equal-length range immediately preceding [start, end],
// shifted back k periods (k=1 is the immediately preceding one).
func PreviousPeriod(start, end time.Time, k int) (time.Time, time.Time) {
	days := PeriodDays(start, end)
	s := StartOfDay(start).AddDate(0, 0, -days*k)
	e := StartOfDay(s).AddDate(0, 0, days-1)
	return s, EndOfDay(e)
}
