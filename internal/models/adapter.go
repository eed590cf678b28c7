package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
)

var (
	// ErrEmptyTraining is returned when predict is called without training data
	ErrEmptyTraining = errors.New("empty training series")

	// ErrIndexMismatch is returned when an adapter's forecast index differs from the target index
	ErrIndexMismatch = errors.New("forecast index does not match target index")

	// ErrModelNotFound matches *ModelNotFoundError
	ErrModelNotFound = errors.New("model not found")
)

// Adapter is the uniform predict contract shared by in-process and external models.
//
// targets nil → the adapter synthesizes len=steps calendar days starting the day after the
// last training observation. targets given → the result index equals targets exactly and steps
// is not used for indexing.
type Adapter interface {
	Name() string
	Predict(ctx context.Context, train contracts.Series, steps int, targets []time.Time, params Params) (*contracts.ForecastResult, error)
}

// ResolveTargets returns the target index an adapter must forecast
func ResolveTargets(train contracts.Series, steps int, targets []time.Time) ([]time.Time, error) {
	if len(targets) > 0 {
		out := make([]time.Time, len(targets))
		for i, t := range targets {
			out[i] = contracts.DateOf(t)
		}
		return out, nil
	}
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be >= 1, got %d", contracts.ErrInvalidParam, steps)
	}
	if train.IsEmpty() {
		return nil, ErrEmptyTraining
	}

	last := train.Last().Date
	out := make([]time.Time, steps)
	for i := range out {
		out[i] = last.AddDate(0, 0, i+1)
	}
	return out, nil
}

// Params are model keyword parameters (int, float64, bool, string or []float64 tuples)
type Params map[string]interface{}

// Int returns an integer parameter or def when absent
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s must be an integer, got %v", contracts.ErrInvalidParam, key, v)
}

// Bool returns a boolean parameter or def when absent
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b, nil
		}
	}
	return false, fmt.Errorf("%w: %s must be a boolean, got %v", contracts.ErrInvalidParam, key, v)
}

// Ints returns an integer tuple parameter ("1,1,0") or def when absent
func (p Params) Ints(key string, def []int) ([]int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	bad := fmt.Errorf("%w: %s must be an integer tuple, got %v", contracts.ErrInvalidParam, key, v)

	switch x := v.(type) {
	case []int:
		return x, nil
	case []float64:
		out := make([]int, len(x))
		for i, f := range x {
			if f != float64(int(f)) {
				return nil, bad
			}
			out[i] = int(f)
		}
		return out, nil
	case []interface{}:
		out := make([]int, len(x))
		for i, e := range x {
			n, err := Params{key: e}.Int(key, 0)
			if err != nil {
				return nil, bad
			}
			out[i] = n
		}
		return out, nil
	case string:
		parsed, err := ParseValue(x)
		if err != nil {
			return nil, err
		}
		if _, isStr := parsed.(string); isStr {
			return nil, bad
		}
		return Params{key: parsed}.Ints(key, def)
	case int:
		return []int{x}, nil
	}
	return nil, bad
}

// Clone returns a shallow copy
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ParseAssignment parses one "key=value" override
func ParseAssignment(s string) (string, interface{}, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("%w: parameter %q must be key=value", contracts.ErrInvalidParam, s)
	}
	v, err := ParseValue(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("parameter %s: %w", key, err)
	}
	return key, v, nil
}

// ParseAssignments parses repeated "key=value" overrides into Params
func ParseAssignments(items []string) (Params, error) {
	params := Params{}
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			continue
		}
		k, v, err := ParseAssignment(item)
		if err != nil {
			return nil, err
		}
		params[k] = v
	}
	return params, nil
}

// ParseValue coerces a raw string: int, then float, then a comma tuple of numbers, else string
func ParseValue(raw string) (interface{}, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]float64, 0, len(parts))
		numeric := true
		for _, part := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				numeric = false
				break
			}
			out = append(out, f)
		}
		if numeric {
			return out, nil
		}
		// 숫자와 문자가 섞인 튜플은 허용하지 않음
		if strings.Trim(raw, " ,") == "" || anyNumeric(parts) {
			return nil, fmt.Errorf("%w: malformed tuple %q", contracts.ErrInvalidParam, raw)
		}
	}
	return raw, nil
}

func anyNumeric(parts []string) bool {
	for _, part := range parts {
		if _, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			return true
		}
	}
	return false
}
