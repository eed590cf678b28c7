package backtest

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/series"
)

func day(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// businessSeries builds n business-day points starting at start
func businessSeries(start string, values ...float64) contracts.Series {
	dates := series.Periods(contracts.FreqDaily, day(start), len(values))
	pts := make([]contracts.Point, len(values))
	for i, v := range values {
		pts[i] = contracts.Point{Date: dates[i], Value: v}
	}
	return contracts.NewSeries("USD", "EUR", contracts.FreqDaily, pts)
}

func flatSeries(n int) contracts.Series {
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 1.1 + float64(i)*0.001
	}
	return businessSeries("2024-01-01", vals...)
}

// spyAdapter records every call and predicts the last training value
type spyAdapter struct {
	calls []spyCall
	err   error
}

type spyCall struct {
	train   contracts.Series
	steps   int
	targets []time.Time
}

func (s *spyAdapter) Name() string { return "spy" }

func (s *spyAdapter) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params models.Params) (*contracts.ForecastResult, error) {
	s.calls = append(s.calls, spyCall{train: train, steps: steps, targets: targets})
	if s.err != nil {
		return nil, s.err
	}
	return models.Naive{}.Predict(ctx, train, steps, targets, params)
}

func TestEvaluate_EndToEndNaive(t *testing.T) {
	y := businessSeries("2024-01-01", 1.10, 1.12, 1.11, 1.13, 1.14)

	eval, err := Evaluate(context.Background(), y, models.Naive{}, Config{Window: 3, Horizon: 1})
	require.NoError(t, err)
	require.Len(t, eval.Slices, 3)

	want := []struct {
		date     string
		actual   float64
		forecast float64
	}{
		{"2024-01-03", 1.11, 1.12},
		{"2024-01-04", 1.13, 1.11},
		{"2024-01-05", 1.14, 1.13},
	}
	for i, w := range want {
		assert.Equal(t, day(w.date), eval.Slices[i].Date)
		assert.Equal(t, w.actual, eval.Slices[i].Actual)
		assert.Equal(t, w.forecast, eval.Slices[i].Forecast)
	}

	assert.InDelta(t, 0.04/3, eval.Metrics.MAE, 1e-9)
	assert.Equal(t, 3, eval.Metrics.N)
}

func TestEvaluate_WindowClamp(t *testing.T) {
	eval, err := Evaluate(context.Background(), flatSeries(50), models.Naive{}, Config{Window: 1000, Horizon: 1})
	require.NoError(t, err)
	assert.Equal(t, 49, eval.Targets)
	assert.Len(t, eval.Slices, 49)
	assert.Equal(t, 49, eval.Metrics.N)
}

func TestEvaluate_NoLeakage(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 20; i++ {
		n := 2 + rng.Intn(60)
		window := 1 + rng.Intn(80)
		horizon := 1 + rng.Intn(3)

		spy := &spyAdapter{}
		_, err := Evaluate(context.Background(), flatSeries(n), spy, Config{Window: window, Horizon: horizon})
		require.NoError(t, err)

		for _, c := range spy.calls {
			dt := c.targets[0]
			for _, d := range c.train.Dates() {
				require.True(t, d.Before(dt), "n=%d w=%d h=%d: train date %s not before target %s",
					n, window, horizon, contracts.FormatDate(d), contracts.FormatDate(dt))
			}
		}
	}
}

func TestEvaluate_MultiStepTargets(t *testing.T) {
	spy := &spyAdapter{}
	y := businessSeries("2024-01-01", 1.1, 1.2, 1.3, 1.4, 1.5)

	eval, err := Evaluate(context.Background(), y, spy, Config{Window: 1, Horizon: 3})
	require.NoError(t, err)
	require.Len(t, spy.calls, 1)

	// 2024-01-05 is a Friday
	assert.Equal(t, 3, spy.calls[0].steps)
	assert.Equal(t, []time.Time{day("2024-01-05"), day("2024-01-08"), day("2024-01-09")}, spy.calls[0].targets)
	require.Len(t, eval.Slices, 1)
	assert.Equal(t, 1.4, eval.Slices[0].Forecast)
}

func TestEvaluate_ShortSeries(t *testing.T) {
	for _, y := range []contracts.Series{{}, businessSeries("2024-01-01", 1.1)} {
		eval, err := Evaluate(context.Background(), y, models.Naive{}, Config{Window: 5, Horizon: 1})
		require.NoError(t, err)
		assert.Empty(t, eval.Slices)
		assert.Zero(t, eval.Metrics.N)
		assert.True(t, math.IsNaN(eval.Metrics.MAE))
		assert.True(t, math.IsNaN(eval.Metrics.RMSE))
		assert.True(t, math.IsNaN(eval.Metrics.MAPE))
	}
}

func TestEvaluate_AdapterErrorCarriesDate(t *testing.T) {
	boom := errors.New("solver diverged")
	spy := &spyAdapter{err: boom}

	_, err := Evaluate(context.Background(), flatSeries(5), spy, Config{Window: 2, Horizon: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "2024-01-04")
}

func TestComputeMetrics(t *testing.T) {
	tests := []struct {
		name   string
		slices []contracts.BacktestSlice
		want   contracts.Metrics
	}{
		{
			name: "zero actual excluded from mape only",
			slices: []contracts.BacktestSlice{
				{Actual: 0, Forecast: 1},
				{Actual: 2, Forecast: 1},
			},
			want: contracts.Metrics{MAPE: 50, RMSE: 1, MAE: 1, N: 2},
		},
		{
			name: "mixed errors",
			slices: []contracts.BacktestSlice{
				{Actual: 1, Forecast: 1.1},
				{Actual: 1, Forecast: 0.7},
			},
			want: contracts.Metrics{MAPE: 20, RMSE: math.Sqrt(0.05), MAE: 0.2, N: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeMetrics(tt.slices)
			assert.Equal(t, tt.want.N, got.N)
			assert.InDelta(t, tt.want.MAPE, got.MAPE, 1e-9)
			assert.InDelta(t, tt.want.RMSE, got.RMSE, 1e-9)
			assert.InDelta(t, tt.want.MAE, got.MAE, 1e-9)
		})
	}

	t.Run("only zero actuals", func(t *testing.T) {
		got := ComputeMetrics([]contracts.BacktestSlice{{Actual: 0, Forecast: 0.5}})
		assert.True(t, math.IsNaN(got.MAPE))
		assert.InDelta(t, 0.5, got.MAE, 1e-12)
		assert.Equal(t, 1, got.N)
	})

	t.Run("no pairs", func(t *testing.T) {
		got := ComputeMetrics(nil)
		assert.Zero(t, got.N)
		assert.True(t, math.IsNaN(got.RMSE))
	})
}
