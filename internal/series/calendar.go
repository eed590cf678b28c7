package series

import (
	"time"

	"github.com/wonny/fxlab/internal/contracts"
)

// IsBusinessDay reports Monday–Friday (no holiday calendar)
func IsBusinessDay(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// IsFriday reports whether d falls on a Friday
func IsFriday(d time.Time) bool {
	return d.Weekday() == time.Friday
}

// NextBusinessDay returns the first Monday–Friday date strictly after d
func NextBusinessDay(d time.Time) time.Time {
	next := contracts.DateOf(d).AddDate(0, 0, 1)
	for !IsBusinessDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// BusinessDaysBetween lists Monday–Friday dates in [from, to] inclusive
func BusinessDaysBetween(from, to time.Time) []time.Time {
	from, to = contracts.DateOf(from), contracts.DateOf(to)
	if to.Before(from) {
		return nil
	}

	days := make([]time.Time, 0, int(to.Sub(from).Hours()/24)+1)
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if IsBusinessDay(cur) {
			days = append(days, cur)
		}
	}
	return days
}

// NextPeriod advances d by one period of the given frequency:
// daily -> next business day, weekly -> +7 days
func NextPeriod(freq contracts.Frequency, d time.Time) time.Time {
	if freq == contracts.FreqWeekly {
		return contracts.DateOf(d).AddDate(0, 0, 7)
	}
	return NextBusinessDay(d)
}

// Periods returns n consecutive periods starting at (and including) start
func Periods(freq contracts.Frequency, start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, n)
	out[0] = contracts.DateOf(start)
	for i := 1; i < n; i++ {
		out[i] = NextPeriod(freq, out[i-1])
	}
	return out
}
