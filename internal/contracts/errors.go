package contracts

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound marks configuration lookups that failed (unknown currency, unconfigured source)
	ErrNotFound = errors.New("not found")

	// ErrInvalidParam marks malformed caller input (codes, timeframes, parameter strings)
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrDataQuality marks non-positive rates or forecasts headed for storage
	ErrDataQuality = errors.New("data quality")
)

// DataQualityError reports a non-positive value that must not be persisted
type DataQualityError struct {
	Base  string
	Quote string
	Date  time.Time
	Field string
	Value float64
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: %s/%s %s %s=%g must be > 0",
		e.Base, e.Quote, FormatDate(e.Date), e.Field, e.Value)
}

// Is makes errors.Is(err, ErrDataQuality) match
func (e *DataQualityError) Is(target error) bool {
	return target == ErrDataQuality
}

// NotFoundf wraps ErrNotFound with a message
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
