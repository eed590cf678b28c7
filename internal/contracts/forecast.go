package contracts

import (
	"fmt"
	"strings"
	"time"
)

// ForecastResult is the immutable output of a model adapter.
// 예측 인덱스는 항상 target dates 와 완전히 동일해야 한다
type ForecastResult struct {
	ModelName string
	Params    map[string]interface{}
	Cutoff    *time.Time
	FitInfo   map[string]interface{}

	targets []time.Time
	yhat    []float64
	lower   []float64
	upper   []float64
}

// NewForecastResult validates that targets are ascending, unique and the same length as yhat
func NewForecastResult(modelName string, targets []time.Time, yhat []float64) (*ForecastResult, error) {
	if len(targets) != len(yhat) {
		return nil, fmt.Errorf("forecast %s: %d target dates but %d values", modelName, len(targets), len(yhat))
	}

	ts := make([]time.Time, len(targets))
	for i, t := range targets {
		ts[i] = DateOf(t)
		if i > 0 && !ts[i].After(ts[i-1]) {
			return nil, fmt.Errorf("forecast %s: target dates must be strictly ascending (%s after %s)",
				modelName, FormatDate(ts[i]), FormatDate(ts[i-1]))
		}
	}
	ys := make([]float64, len(yhat))
	copy(ys, yhat)

	return &ForecastResult{ModelName: modelName, targets: ts, yhat: ys}, nil
}

// WithInterval attaches lower/upper bounds aligned with the point forecasts
func (r *ForecastResult) WithInterval(lower, upper []float64) error {
	if len(lower) != len(r.yhat) || len(upper) != len(r.yhat) {
		return fmt.Errorf("forecast %s: interval length mismatch (lower=%d upper=%d yhat=%d)",
			r.ModelName, len(lower), len(upper), len(r.yhat))
	}
	r.lower = append([]float64(nil), lower...)
	r.upper = append([]float64(nil), upper...)
	return nil
}

// Len returns the number of forecast points
func (r *ForecastResult) Len() int { return len(r.yhat) }

// TargetDates returns a copy of the target index
func (r *ForecastResult) TargetDates() []time.Time {
	return append([]time.Time(nil), r.targets...)
}

// Yhat returns a copy of the point forecasts
func (r *ForecastResult) Yhat() []float64 {
	return append([]float64(nil), r.yhat...)
}

// HasInterval reports whether lower/upper bounds are present
func (r *ForecastResult) HasInterval() bool { return r.lower != nil }

// Lower returns a copy of the lower bounds (nil when absent)
func (r *ForecastResult) Lower() []float64 {
	if r.lower == nil {
		return nil
	}
	return append([]float64(nil), r.lower...)
}

// Upper returns a copy of the upper bounds (nil when absent)
func (r *ForecastResult) Upper() []float64 {
	if r.upper == nil {
		return nil
	}
	return append([]float64(nil), r.upper...)
}

// At returns the point forecast for target date d
func (r *ForecastResult) At(d time.Time) (float64, bool) {
	d = DateOf(d)
	for i, t := range r.targets {
		if t.Equal(d) {
			return r.yhat[i], true
		}
	}
	return 0, false
}

// IndexEquals reports whether the forecast index is exactly targets (same dates, order, count)
func (r *ForecastResult) IndexEquals(targets []time.Time) bool {
	if len(targets) != len(r.targets) {
		return false
	}
	for i, t := range targets {
		if !DateOf(t).Equal(r.targets[i]) {
			return false
		}
	}
	return true
}

// ModelLibrary groups model specs by implementation family
type ModelLibrary string

const (
	LibraryBaseline  ModelLibrary = "baseline"
	LibraryARIMA     ModelLibrary = "arima"
	LibrarySmoothing ModelLibrary = "smoothing"
	LibraryExternal  ModelLibrary = "external"
)

// ModelSpec 모델 설정 (code = "{model}-{daily|weekly|monthly}")
type ModelSpec struct {
	ID          int64                  `json:"id"`
	Code        string                 `json:"code"`
	Name        string                 `json:"name"`
	Library     ModelLibrary           `json:"library"`
	Timeframe   Timeframe              `json:"timeframe"`
	HorizonDays int                    `json:"horizon_days"`
	Params      map[string]interface{} `json:"params"`
	Active      bool                   `json:"active"`
}

// SpecCode builds the model spec code for a model key and timeframe
func SpecCode(model string, tf Timeframe) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(model), tf.Label())
}

// NewModelSpec builds the spec row for a model key at a timeframe:
// code "naive-daily", name "Naive (Daily)", horizon at least 1
func NewModelSpec(model string, lib ModelLibrary, tf Timeframe, horizon int, params map[string]interface{}) ModelSpec {
	model = strings.ToLower(model)
	if params == nil {
		params = map[string]interface{}{}
	}
	return ModelSpec{
		Code:        SpecCode(model, tf),
		Name:        fmt.Sprintf("%s (%s)", titleCase(model), titleCase(tf.Label())),
		Library:     lib,
		Timeframe:   tf,
		HorizonDays: max(1, horizon),
		Params:      params,
		Active:      true,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ModelKey is the model part of a spec code ("naive-daily" -> "naive")
func (s ModelSpec) ModelKey() string {
	key, _, _ := strings.Cut(s.Code, "-")
	return key
}

// ForecastRun 예측 실행 단위, unique on (timeframe, data_cutoff_date, model_name)
type ForecastRun struct {
	ID             int64     `json:"id"`
	Timeframe      Timeframe `json:"timeframe"`
	DataCutoffDate time.Time `json:"data_cutoff_date"`
	ModelName      string    `json:"model_name"`
	Status         string    `json:"status"`
	RowsWritten    int       `json:"rows_written"`
	RunAt          time.Time `json:"run_at"`
}

// ForecastRow is one stored forecast value
type ForecastRow struct {
	RunID      int64     `json:"run_id"`
	ModelCode  string    `json:"model_code"`
	Base       string    `json:"base"`
	Quote      string    `json:"quote"`
	TargetDate time.Time `json:"target_date"`
	Yhat       float64   `json:"yhat"`
	Lower      *float64  `json:"yhat_lower,omitempty"`
	Upper      *float64  `json:"yhat_upper,omitempty"`
	CutoffDate time.Time `json:"data_cutoff_date"`
}
