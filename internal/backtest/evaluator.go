package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/series"
)

// Config controls one walk-forward evaluation
type Config struct {
	Window  int // 평가 대상 개수 (마지막 N개 날짜)
	Horizon int // 예측 step 수
	Params  models.Params
}

// Evaluation is the result of one walk-forward evaluation of a pair
type Evaluation struct {
	Slices  []contracts.BacktestSlice
	Metrics contracts.Metrics
	Targets int // 평가 대상으로 선택된 날짜 수
}

// Evaluate runs a walk-forward backtest over the last Window dates of y.
// Each target dt is predicted from every observation strictly before dt.
// ⭐ SSOT: 학습/평가 분리 규칙은 여기서만
func Evaluate(ctx context.Context, y contracts.Series, adapter models.Adapter, cfg Config) (*Evaluation, error) {
	if y.Len() < 2 {
		return &Evaluation{Metrics: contracts.EmptyMetrics()}, nil
	}

	window := cfg.Window
	if window < 1 {
		window = 1
	}
	horizon := cfg.Horizon
	if horizon < 1 {
		horizon = 1
	}

	nTargets := window
	if nTargets > y.Len()-1 {
		nTargets = y.Len() - 1
	}
	dates := y.Dates()[y.Len()-nTargets:]

	eval := &Evaluation{Targets: nTargets, Slices: make([]contracts.BacktestSlice, 0, nTargets)}
	for _, dt := range dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		train := y.Before(dt)
		if train.IsEmpty() {
			continue
		}

		targets := []time.Time{dt}
		if horizon > 1 {
			targets = series.Periods(y.Freq, dt, horizon)
		}

		res, err := adapter.Predict(ctx, train, horizon, targets, cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("backtest %s at %s: %w", y.Pair(), contracts.FormatDate(dt), err)
		}

		// step 1 만 채점
		forecast, ok := res.At(dt)
		if !ok {
			continue
		}
		actual, _ := y.Value(dt)
		eval.Slices = append(eval.Slices, contracts.BacktestSlice{Date: dt, Actual: actual, Forecast: forecast})
	}

	eval.Metrics = ComputeMetrics(eval.Slices)
	return eval, nil
}
