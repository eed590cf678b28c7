package models

import (
	"context"
	"fmt"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/wonny/fxlab/internal/contracts"
)

// DefaultSmoothingPeriod is the moving-average period when "period" is not given
const DefaultSmoothingPeriod = 10

// MovingAverage forecasts the final moving-average level flat over every target.
// Kind "sma" uses a simple average, "ema" an exponential one.
type MovingAverage struct {
	Kind string
}

func (m MovingAverage) Name() string { return m.Kind }

func (m MovingAverage) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error) {
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}
	idx, err := ResolveTargets(train, steps, targets)
	if err != nil {
		return nil, err
	}

	period, err := params.Int("period", DefaultSmoothingPeriod)
	if err != nil {
		return nil, err
	}
	if period < 1 {
		return nil, fmt.Errorf("%w: period must be >= 1, got %d", contracts.ErrInvalidParam, period)
	}
	values := train.Values()
	if period > len(values) {
		period = len(values)
	}

	var averaged []float64
	switch m.Kind {
	case "ema":
		ema := trend.NewEmaWithPeriod[float64](period)
		averaged = helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
	default:
		sma := trend.NewSmaWithPeriod[float64](period)
		averaged = helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	}

	level := values[len(values)-1]
	if len(averaged) > 0 {
		level = averaged[len(averaged)-1]
	}

	yhat := make([]float64, len(idx))
	for i := range yhat {
		yhat[i] = level
	}

	res, err := contracts.NewForecastResult(m.Name(), idx, yhat)
	if err != nil {
		return nil, err
	}
	cutoff := train.Last().Date
	res.Params = params
	res.Cutoff = &cutoff
	res.FitInfo = map[string]interface{}{"nobs": train.Len(), "period": period, "level": level}
	return res, nil
}
