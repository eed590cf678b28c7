package contracts

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the ISO date format used on every wire and CLI surface
const DateLayout = "2006-01-02"

// DateOf truncates t to its civil date at UTC midnight
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses YYYY-MM-DD into a UTC civil date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidParam, s)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Frequency of a loaded series
type Frequency string

const (
	FreqDaily  Frequency = "D"
	FreqWeekly Frequency = "W"
)

// ParseFrequency accepts D/W (any case) or daily/weekly
func ParseFrequency(s string) (Frequency, error) {
	tf, err := ParseTimeframe(s)
	if err != nil {
		return "", err
	}
	switch tf {
	case TimeframeDaily:
		return FreqDaily, nil
	case TimeframeWeekly:
		return FreqWeekly, nil
	}
	return "", fmt.Errorf("%w: series frequency must be D or W, got %q", ErrInvalidParam, s)
}

// Timeframe maps a series frequency onto its storage label
func (f Frequency) Timeframe() Timeframe {
	if f == FreqWeekly {
		return TimeframeWeekly
	}
	return TimeframeDaily
}

// Point is one dated value of a series
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an immutable, ascending, date-unique rate series for one pair.
// ⭐ SSOT: 시계열 불변식(정렬, 중복 없음)은 NewSeries 에서만 보장
type Series struct {
	Base   string
	Quote  string
	Freq   Frequency
	points []Point
}

// NewSeries copies points, normalises dates to civil UTC, sorts ascending and keeps the
// first value for duplicate dates
func NewSeries(base, quote string, freq Frequency, points []Point) Series {
	cp := make([]Point, len(points))
	for i, p := range points {
		cp[i] = Point{Date: DateOf(p.Date), Value: p.Value}
	}
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })

	out := cp[:0]
	for i, p := range cp {
		if i > 0 && p.Date.Equal(cp[i-1].Date) {
			continue
		}
		out = append(out, p)
	}
	return Series{Base: base, Quote: quote, Freq: freq, points: out}
}

// withPoints builds a series sharing metadata; pts must already be sorted and unique
func (s Series) withPoints(pts []Point) Series {
	return Series{Base: s.Base, Quote: s.Quote, Freq: s.Freq, points: pts}
}

// Len returns the number of points
func (s Series) Len() int { return len(s.points) }

// IsEmpty reports whether the series has no points
func (s Series) IsEmpty() bool { return len(s.points) == 0 }

// At returns the i-th point
func (s Series) At(i int) Point { return s.points[i] }

// First returns the earliest point; callers check IsEmpty first
func (s Series) First() Point { return s.points[0] }

// Last returns the latest point; callers check IsEmpty first
func (s Series) Last() Point { return s.points[len(s.points)-1] }

// Points returns a copy of the points
func (s Series) Points() []Point {
	out := make([]Point, len(s.points))
	copy(out, s.points)
	return out
}

// Dates returns a copy of the dates
func (s Series) Dates() []time.Time {
	out := make([]time.Time, len(s.points))
	for i, p := range s.points {
		out[i] = p.Date
	}
	return out
}

// Values returns a copy of the values
func (s Series) Values() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Value
	}
	return out
}

// Value looks up the value on date d
func (s Series) Value(d time.Time) (float64, bool) {
	d = DateOf(d)
	i := sort.Search(len(s.points), func(i int) bool { return !s.points[i].Date.Before(d) })
	if i < len(s.points) && s.points[i].Date.Equal(d) {
		return s.points[i].Value, true
	}
	return 0, false
}

// Before returns the points strictly before d
func (s Series) Before(d time.Time) Series {
	d = DateOf(d)
	i := sort.Search(len(s.points), func(i int) bool { return !s.points[i].Date.Before(d) })
	return s.withPoints(s.points[:i:i])
}

// UpTo returns the points on or before d
func (s Series) UpTo(d time.Time) Series {
	d = DateOf(d)
	i := sort.Search(len(s.points), func(i int) bool { return s.points[i].Date.After(d) })
	return s.withPoints(s.points[:i:i])
}

// Tail returns the last n points (all of them when n >= Len)
func (s Series) Tail(n int) Series {
	if n >= len(s.points) {
		return s
	}
	if n <= 0 {
		return s.withPoints(nil)
	}
	return s.withPoints(s.points[len(s.points)-n:])
}

// Pair returns "BASE/QUOTE"
func (s Series) Pair() string {
	return s.Base + "/" + s.Quote
}
