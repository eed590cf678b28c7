package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
)

// z-score of the 95% interval
const z95 = 1.959963984540054

var errSingular = errors.New("singular design matrix")

// ARIMA fits an ARIMA(p,d,0) by least squares on the d-times differenced series.
//
// params: order "p,d,q" (q must be 0, default 1,1,0), with_intercept (default true)
type ARIMA struct{}

func (ARIMA) Name() string { return "arima" }

func (a ARIMA) Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error) {
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}
	idx, err := ResolveTargets(train, steps, targets)
	if err != nil {
		return nil, err
	}

	order, err := params.Ints("order", []int{1, 1, 0})
	if err != nil {
		return nil, err
	}
	if len(order) != 3 || order[0] < 0 || order[1] < 0 || order[2] != 0 {
		return nil, fmt.Errorf("%w: arima order must be p,d,0 with p,d >= 0, got %v", contracts.ErrInvalidParam, order)
	}
	p, d := order[0], order[1]
	intercept, err := params.Bool("with_intercept", true)
	if err != nil {
		return nil, err
	}

	y := train.Values()
	if len(y) < p+d+2 {
		return nil, fmt.Errorf("arima(%d,%d,0) needs at least %d observations, got %d", p, d, p+d+2, len(y))
	}

	// levels[j] = j-times differenced series
	levels := make([][]float64, d+1)
	levels[0] = y
	for j := 1; j <= d; j++ {
		levels[j] = difference(levels[j-1])
	}
	z := levels[d]

	fit := fitAR(z, p, intercept)

	h := len(idx)
	history := append([]float64(nil), z...)
	zhat := make([]float64, h)
	for i := 0; i < h; i++ {
		v := fit.constant
		for k := 0; k < p; k++ {
			v += fit.phi[k] * history[len(history)-1-k]
		}
		zhat[i] = v
		history = append(history, v)
	}

	// 차분 복원: 높은 차수부터 누적합
	yhat := zhat
	for j := d - 1; j >= 0; j-- {
		prev := levels[j][len(levels[j])-1]
		restored := make([]float64, h)
		for i := range yhat {
			prev += yhat[i]
			restored[i] = prev
		}
		yhat = restored
	}

	lower := make([]float64, h)
	upper := make([]float64, h)
	for i := range yhat {
		se := math.Sqrt(fit.sigma2 * float64(i+1))
		lower[i] = yhat[i] - z95*se
		upper[i] = yhat[i] + z95*se
	}

	res, err := contracts.NewForecastResult(a.Name(), idx, yhat)
	if err != nil {
		return nil, err
	}
	if err := res.WithInterval(lower, upper); err != nil {
		return nil, err
	}

	cutoff := train.Last().Date
	res.Params = params
	res.Cutoff = &cutoff
	res.FitInfo = fit.info(p, d)
	return res, nil
}

type arFit struct {
	constant float64
	phi      []float64
	sigma2   float64
	sse      float64
	nobs     int
	nparams  int
	fallback bool
}

func (f arFit) info(p, d int) map[string]interface{} {
	info := map[string]interface{}{
		"order":  []int{p, d, 0},
		"sigma2": f.sigma2,
		"nobs":   f.nobs,
		"const":  f.constant,
		"ar":     append([]float64(nil), f.phi...),
	}
	if f.sse > 0 && f.nobs > 0 {
		ll := float64(f.nobs) * math.Log(f.sse/float64(f.nobs))
		k := float64(f.nparams + 1)
		info["aic"] = ll + 2*k
		info["bic"] = ll + k*math.Log(float64(f.nobs))
	}
	if f.fallback {
		info["fallback"] = "mean"
	}
	return info
}

// fitAR regresses z_t on z_{t-1..t-p} (plus a constant when intercept is set)
func fitAR(z []float64, p int, intercept bool) arFit {
	m := len(z) - p
	k := p
	if intercept {
		k++
	}

	fit := arFit{phi: make([]float64, p), nobs: m, nparams: k}
	if k > 0 {
		x := make([][]float64, m)
		target := make([]float64, m)
		for r := 0; r < m; r++ {
			t := r + p
			row := make([]float64, 0, k)
			if intercept {
				row = append(row, 1)
			}
			for lag := 1; lag <= p; lag++ {
				row = append(row, z[t-lag])
			}
			x[r] = row
			target[r] = z[t]
		}

		beta, err := leastSquares(x, target)
		if err != nil {
			// 상수 시계열 등 퇴화된 경우 평균 모델로 대체
			fit.fallback = true
			if intercept {
				fit.constant = mean(z[p:])
			}
		} else {
			off := 0
			if intercept {
				fit.constant = beta[0]
				off = 1
			}
			copy(fit.phi, beta[off:])
		}
	}

	for t := p; t < len(z); t++ {
		pred := fit.constant
		for lag := 1; lag <= p; lag++ {
			pred += fit.phi[lag-1] * z[t-lag]
		}
		e := z[t] - pred
		fit.sse += e * e
	}
	if m > 0 {
		fit.sigma2 = fit.sse / float64(m)
	}
	return fit
}

// leastSquares solves (XᵀX)β = Xᵀy with partial-pivot Gaussian elimination
func leastSquares(x [][]float64, y []float64) ([]float64, error) {
	k := len(x[0])
	a := make([][]float64, k)
	for i := range a {
		a[i] = make([]float64, k+1)
	}
	for r, row := range x {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				a[i][j] += row[i] * row[j]
			}
			a[i][k] += row[i] * y[r]
		}
	}

	scale := 0.0
	for i := 0; i < k; i++ {
		scale = math.Max(scale, math.Abs(a[i][i]))
	}
	if scale == 0 {
		return nil, errSingular
	}

	for col := 0; col < k; col++ {
		pivot := col
		for r := col + 1; r < k; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) <= 1e-12*scale {
			return nil, errSingular
		}
		a[col], a[pivot] = a[pivot], a[col]

		for r := 0; r < k; r++ {
			if r == col {
				continue
			}
			factor := a[r][col] / a[col][col]
			for c := col; c <= k; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	beta := make([]float64, k)
	for i := range beta {
		beta[i] = a[i][k] / a[i][i]
	}
	return beta, nil
}

func difference(v []float64) []float64 {
	if len(v) < 2 {
		return nil
	}
	out := make([]float64, len(v)-1)
	for i := 1; i < len(v); i++ {
		out[i-1] = v[i] - v[i-1]
	}
	return out
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
