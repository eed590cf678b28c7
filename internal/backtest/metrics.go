package backtest

import (
	"math"

	"github.com/wonny/fxlab/internal/contracts"
)

// ComputeMetrics aggregates slice errors.
// RMSE/MAE use every pair; MAPE skips pairs whose actual is zero but N still counts them.
func ComputeMetrics(slices []contracts.BacktestSlice) contracts.Metrics {
	if len(slices) == 0 {
		return contracts.EmptyMetrics()
	}

	var sqSum, absSum, pctSum float64
	pctN := 0
	for _, s := range slices {
		diff := s.Actual - s.Forecast
		sqSum += diff * diff
		absSum += math.Abs(diff)
		if s.Actual != 0 {
			pctSum += math.Abs(diff / s.Actual)
			pctN++
		}
	}

	n := float64(len(slices))
	m := contracts.Metrics{
		RMSE: math.Sqrt(sqSum / n),
		MAE:  absSum / n,
		MAPE: math.NaN(),
		N:    len(slices),
	}
	if pctN > 0 {
		m.MAPE = pctSum / float64(pctN) * 100
	}
	return m
}
