package overview

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/series"
)

const (
	lagDaily   = 1
	lagWeekly  = 5  // ~1주 영업일
	lagMonthly = 21 // ~1개월 영업일
)

// Metrics 통화쌍 요약 지표. Values that cannot be computed are nil.
type Metrics struct {
	Base       string     `json:"base"`
	Quote      string     `json:"quote"`
	LastDate   *time.Time `json:"last_date"`
	LastRate   *float64   `json:"last_rate"`
	DailyPct   *float64   `json:"daily_pct"`
	WeeklyPct  *float64   `json:"weekly_pct"`
	MonthlyPct *float64   `json:"monthly_pct"`
	ROC5Pct    *float64   `json:"roc5_pct"`
	Vol7       *float64   `json:"vol7"`
	Vol30      *float64   `json:"vol30"`
	StreakDays int        `json:"streak_days"`
}

// Compute derives overview metrics from a daily series
func Compute(s contracts.Series) Metrics {
	m := Metrics{Base: s.Base, Quote: s.Quote}
	if s.IsEmpty() {
		return m
	}

	vals := s.Values()
	last := s.Last()
	m.LastDate = &last.Date
	m.LastRate = &last.Value

	m.DailyPct = pctChange(vals, lagDaily)
	m.WeeklyPct = pctChange(vals, lagWeekly)
	m.MonthlyPct = pctChange(vals, lagMonthly)
	m.ROC5Pct = pctChange(vals, lagWeekly)

	r := returns(vals)
	m.Vol7 = sampleStd(tail(r, 7))
	m.Vol30 = sampleStd(tail(r, 30))
	m.StreakDays = streak(vals)
	return m
}

func pctChange(vals []float64, lag int) *float64 {
	if len(vals) <= lag {
		return nil
	}
	last, prev := vals[len(vals)-1], vals[len(vals)-1-lag]
	if prev == 0 {
		return nil
	}
	v := (last/prev - 1) * 100
	return &v
}

// returns are simple day-over-day changes; pairs with a zero previous value are dropped
func returns(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for i := 1; i < len(vals); i++ {
		if vals[i-1] == 0 {
			continue
		}
		out = append(out, vals[i]/vals[i-1]-1)
	}
	return out
}

func tail(vals []float64, n int) []float64 {
	if len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}

// sampleStd uses n-1 in the denominator; fewer than two values yields nil
func sampleStd(vals []float64) *float64 {
	if len(vals) < 2 {
		return nil
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(vals)-1))
	return &std
}

// streak counts consecutive moves sharing the direction of the last move; a flat last move is 0
func streak(vals []float64) int {
	if len(vals) < 2 {
		return 0
	}
	sign := func(d float64) int {
		switch {
		case d > 0:
			return 1
		case d < 0:
			return -1
		}
		return 0
	}

	want := sign(vals[len(vals)-1] - vals[len(vals)-2])
	if want == 0 {
		return 0
	}
	n := 0
	for i := len(vals) - 1; i > 0; i-- {
		if sign(vals[i]-vals[i-1]) != want {
			break
		}
		n++
	}
	return n
}

// SeriesLoader loads calendar-normalised series
type SeriesLoader interface {
	Load(ctx context.Context, req series.Request) (contracts.Series, error)
}

// Service computes overview boards from stored rates
type Service struct {
	loader SeriesLoader
	logger zerolog.Logger
}

// NewService creates an overview service
func NewService(loader SeriesLoader, log zerolog.Logger) *Service {
	return &Service{loader: loader, logger: log.With().Str("component", "overview").Logger()}
}

// Pair computes metrics of one pair from its unfilled daily series
func (s *Service) Pair(ctx context.Context, base, quote string) (Metrics, error) {
	y, err := s.loader.Load(ctx, series.Request{
		Base:  strings.ToUpper(base),
		Quote: strings.ToUpper(quote),
		Freq:  contracts.FreqDaily,
		Fill:  series.FillNone,
	})
	if err != nil {
		return Metrics{}, err
	}
	return Compute(y), nil
}

// Board computes metrics for every quote; failing quotes are logged and left out
func (s *Service) Board(ctx context.Context, base string, quotes []string) []Metrics {
	out := make([]Metrics, 0, len(quotes))
	for _, q := range quotes {
		m, err := s.Pair(ctx, base, q)
		if err != nil {
			s.logger.Warn().Err(err).Str("pair", base+"/"+q).Msg("overview skipped")
			continue
		}
		out = append(out, m)
	}
	return out
}
