package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/contracts"
)

func day(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// businessSeries builds a Mon–Fri series starting at start with the given values
func businessSeries(start string, values ...float64) contracts.Series {
	pts := make([]contracts.Point, 0, len(values))
	d := day(start)
	for _, v := range values {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		pts = append(pts, contracts.Point{Date: d, Value: v})
		d = d.AddDate(0, 0, 1)
	}
	return contracts.NewSeries("USD", "EUR", contracts.FreqDaily, pts)
}

func TestResolveTargets(t *testing.T) {
	train := businessSeries("2024-03-01", 1.1) // Friday

	t.Run("synthesized calendar days after last observation", func(t *testing.T) {
		idx, err := ResolveTargets(train, 3, nil)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{day("2024-03-02"), day("2024-03-03"), day("2024-03-04")}, idx)
	})

	t.Run("supplied index wins over steps", func(t *testing.T) {
		want := []time.Time{day("2024-03-04"), day("2024-03-11")}
		idx, err := ResolveTargets(train, 7, want)
		require.NoError(t, err)
		assert.Equal(t, want, idx)
	})

	t.Run("steps must be positive", func(t *testing.T) {
		_, err := ResolveTargets(train, 0, nil)
		assert.ErrorIs(t, err, contracts.ErrInvalidParam)
	})

	t.Run("empty training", func(t *testing.T) {
		_, err := ResolveTargets(contracts.Series{}, 1, nil)
		assert.ErrorIs(t, err, ErrEmptyTraining)
	})
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    interface{}
		wantErr bool
	}{
		{raw: "10", want: 10},
		{raw: "-3", want: -3},
		{raw: "0.25", want: 0.25},
		{raw: "1,1,0", want: []float64{1, 1, 0}},
		{raw: "0.5, 2", want: []float64{0.5, 2}},
		{raw: "additive", want: "additive"},
		{raw: "true", want: "true"},
		{raw: "a,b", want: "a,b"},
		{raw: "1,,0", wantErr: true},
		{raw: "1,x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseValue(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, contracts.ErrInvalidParam)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAssignments(t *testing.T) {
	params, err := ParseAssignments([]string{"order=2,1,0", "period=5", "with_intercept=false"})
	require.NoError(t, err)

	order, err := params.Ints("order", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 0}, order)

	period, err := params.Int("period", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, period)

	intercept, err := params.Bool("with_intercept", true)
	require.NoError(t, err)
	assert.False(t, intercept)

	for _, bad := range []string{"period", "=5", " =1"} {
		_, err := ParseAssignments([]string{bad})
		assert.ErrorIs(t, err, contracts.ErrInvalidParam, bad)
	}
}

func TestParams_TypeErrors(t *testing.T) {
	p := Params{"period": 2.5, "order": "x,y", "flag": "maybe"}

	_, err := p.Int("period", 1)
	assert.ErrorIs(t, err, contracts.ErrInvalidParam)
	_, err = p.Ints("order", nil)
	assert.ErrorIs(t, err, contracts.ErrInvalidParam)
	_, err = p.Bool("flag", false)
	assert.ErrorIs(t, err, contracts.ErrInvalidParam)

	n, err := p.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
