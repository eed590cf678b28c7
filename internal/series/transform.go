package series

import (
	"time"

	"github.com/wonny/fxlab/internal/contracts"
)

// Clip keeps points with start <= date <= end; nil bounds are open.
// pts must be sorted ascending.
func Clip(pts []contracts.Point, start, end *time.Time) []contracts.Point {
	out := make([]contracts.Point, 0, len(pts))
	for _, p := range pts {
		if start != nil && p.Date.Before(contracts.DateOf(*start)) {
			continue
		}
		if end != nil && p.Date.After(contracts.DateOf(*end)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ForwardFillBusinessDays reindexes pts onto every Monday–Friday between the first and the last
// observed date, carrying the previous business-day observation forward into gaps.
// Nothing is produced before the first or after the last observation; weekend observations are
// not part of the business-day calendar and are dropped.
func ForwardFillBusinessDays(pts []contracts.Point) []contracts.Point {
	if len(pts) == 0 {
		return nil
	}

	first, last := pts[0].Date, pts[len(pts)-1].Date
	byDate := make(map[int64]float64, len(pts))
	for _, p := range pts {
		byDate[p.Date.Unix()] = p.Value
	}

	days := BusinessDaysBetween(first, last)
	out := make([]contracts.Point, 0, len(days))

	var carry float64
	seen := false
	for _, day := range days {
		if v, ok := byDate[day.Unix()]; ok {
			carry, seen = v, true
		}
		if seen {
			out = append(out, contracts.Point{Date: day, Value: carry})
		}
	}
	return out
}

// StrictFridays keeps only real Friday observations; weeks without one are dropped
func StrictFridays(pts []contracts.Point) []contracts.Point {
	out := make([]contracts.Point, 0, len(pts)/5+1)
	for _, p := range pts {
		if IsFriday(p.Date) {
			out = append(out, p)
		}
	}
	return out
}
