package models

import (
	"context"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
)

// Naive repeats the last observed value
type Naive struct{}

func (Naive) Name() string { return "naive" }

func (n Naive) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error) {
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}
	idx, err := ResolveTargets(train, steps, targets)
	if err != nil {
		return nil, err
	}

	last := train.Last()
	yhat := make([]float64, len(idx))
	for i := range yhat {
		yhat[i] = last.Value
	}

	res, err := contracts.NewForecastResult(n.Name(), idx, yhat)
	if err != nil {
		return nil, err
	}
	res.Params = params
	res.Cutoff = &last.Date
	res.FitInfo = map[string]interface{}{"nobs": train.Len()}
	return res, nil
}

// Drift extrapolates the average change between the first and last observation
type Drift struct{}

func (Drift) Name() string { return "drift" }

func (d Drift) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error) {
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}
	idx, err := ResolveTargets(train, steps, targets)
	if err != nil {
		return nil, err
	}

	first, last := train.First(), train.Last()
	slope := 0.0
	if n := train.Len(); n > 1 {
		slope = (last.Value - first.Value) / float64(n-1)
	}

	yhat := make([]float64, len(idx))
	for i := range yhat {
		yhat[i] = last.Value + slope*float64(i+1)
	}

	res, err := contracts.NewForecastResult(d.Name(), idx, yhat)
	if err != nil {
		return nil, err
	}
	res.Params = params
	res.Cutoff = &last.Date
	res.FitInfo = map[string]interface{}{"nobs": train.Len(), "slope": slope}
	return res, nil
}
