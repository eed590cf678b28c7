package rates

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/series"
)

// ErrNoRates means nothing is stored for the base yet
var ErrNoRates = errors.New("no rates stored")

// GapStore reads what is stored
type GapStore interface {
	DateRange(ctx context.Context, source, base string) (*time.Time, *time.Time, error)
	ObservedDates(ctx context.Context, source, base, quote string, start, end time.Time) ([]time.Time, error)
}

// PairGaps lists missing business days of one pair
type PairGaps struct {
	Quote   string      `json:"quote"`
	Missing []time.Time `json:"missing"`
}

// GapScan is the result of a business-day completeness check
type GapScan struct {
	Base  string     `json:"base"`
	From  time.Time  `json:"from"`
	To    time.Time  `json:"to"`
	Pairs []PairGaps `json:"pairs"`
}

// Complete reports whether no pair has gaps
func (g *GapScan) Complete() bool {
	for _, p := range g.Pairs {
		if len(p.Missing) > 0 {
			return false
		}
	}
	return true
}

// FindGaps lists Monday–Friday dates without a stored rate per quote.
// The scanned range defaults to the stored min..max of the base; start/end override it.
func FindGaps(ctx context.Context, store GapStore, source, base string, quotes []string, start, end *time.Time) (*GapScan, error) {
	lo, hi, err := store.DateRange(ctx, source, base)
	if err != nil {
		return nil, err
	}
	if lo == nil || hi == nil {
		return nil, ErrNoRates
	}

	from, to := contracts.DateOf(*lo), contracts.DateOf(*hi)
	if start != nil {
		from = contracts.DateOf(*start)
	}
	if end != nil {
		to = contracts.DateOf(*end)
	}

	scan := &GapScan{Base: base, From: from, To: to}
	days := series.BusinessDaysBetween(from, to)
	for _, quote := range quotes {
		observed, err := store.ObservedDates(ctx, source, base, quote, from, to)
		if err != nil {
			return nil, err
		}
		have := make(map[time.Time]bool, len(observed))
		for _, d := range observed {
			have[contracts.DateOf(d)] = true
		}

		gaps := PairGaps{Quote: quote, Missing: []time.Time{}}
		for _, d := range days {
			if !have[d] {
				gaps.Missing = append(gaps.Missing, d)
			}
		}
		scan.Pairs = append(scan.Pairs, gaps)
	}
	return scan, nil
}
