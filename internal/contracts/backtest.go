package contracts

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// BacktestSlice is one evaluated (date, actual, forecast) triple
type BacktestSlice struct {
	Date     time.Time `json:"date"`
	Actual   float64   `json:"actual"`
	Forecast float64   `json:"forecast"`
}

// Validate rejects non-positive actuals or forecasts before they are stored
func (s BacktestSlice) Validate(base, quote string) error {
	if !(s.Actual > 0) {
		return &DataQualityError{Base: base, Quote: quote, Date: s.Date, Field: "actual", Value: s.Actual}
	}
	if !(s.Forecast > 0) {
		return &DataQualityError{Base: base, Quote: quote, Date: s.Date, Field: "forecast", Value: s.Forecast}
	}
	return nil
}

// Metrics are error aggregates over backtest slices; undefined values are NaN
type Metrics struct {
	MAPE float64 `json:"mape"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	N    int     `json:"n"`
}

// EmptyMetrics is the result for zero evaluated pairs
func EmptyMetrics() Metrics {
	return Metrics{MAPE: math.NaN(), RMSE: math.NaN(), MAE: math.NaN(), N: 0}
}

// BacktestRun 백테스트 실행 단위
type BacktestRun struct {
	ID          uuid.UUID `json:"id"`
	ModelCode   string    `json:"model_code"`
	Timeframe   Timeframe `json:"timeframe"`
	HorizonDays int       `json:"horizon_days"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
}

// BacktestMetric is the per-quote metric row of a run; nil means undefined
type BacktestMetric struct {
	RunID uuid.UUID `json:"run_id"`
	Base  string    `json:"base"`
	Quote string    `json:"quote"`
	MAPE  *float64  `json:"mape"`
	RMSE  *float64  `json:"rmse"`
	MAE   *float64  `json:"mae"`
	N     int       `json:"n"`
}

// NewBacktestMetric stores NaN metrics as nil
func NewBacktestMetric(runID uuid.UUID, base, quote string, m Metrics) BacktestMetric {
	return BacktestMetric{
		RunID: runID,
		Base:  base,
		Quote: quote,
		MAPE:  FiniteOrNil(m.MAPE),
		RMSE:  FiniteOrNil(m.RMSE),
		MAE:   FiniteOrNil(m.MAE),
		N:     m.N,
	}
}

// FiniteOrNil returns &v unless v is NaN or ±Inf
func FiniteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
