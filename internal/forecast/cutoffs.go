package forecast

import (
	"errors"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/series"
)

var (
	// ErrNoData is returned when a cutoff is requested over an empty series
	ErrNoData = errors.New("no data")

	// ErrNoFriday is returned when a series has no Friday observation
	ErrNoFriday = errors.New("no Friday observation")
)

// DailyCutoff is the last date of the unfilled daily series
func DailyCutoff(s contracts.Series) (time.Time, error) {
	if s.IsEmpty() {
		return time.Time{}, ErrNoData
	}
	return s.Last().Date, nil
}

// DailyTarget is the next Monday–Friday strictly after the cutoff (no holiday calendar)
func DailyTarget(cutoff time.Time) time.Time {
	return series.NextBusinessDay(cutoff)
}

// WeeklyCutoff is the most recent Friday actually present in the series.
// A missing Friday (holiday) steps back to the prior real Friday; nothing is interpolated.
func WeeklyCutoff(s contracts.Series) (time.Time, error) {
	if s.IsEmpty() {
		return time.Time{}, ErrNoData
	}
	for i := s.Len() - 1; i >= 0; i-- {
		if d := s.At(i).Date; series.IsFriday(d) {
			return d, nil
		}
	}
	return time.Time{}, ErrNoFriday
}

// WeeklyTarget is the calendar Friday 7 days after the cutoff, holiday or not
func WeeklyTarget(cutoff time.Time) time.Time {
	return contracts.DateOf(cutoff).AddDate(0, 0, 7)
}
