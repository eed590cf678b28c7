package contracts

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Z]{3}$`)

// Currency 통화 마스터
type Currency struct {
	Code     string `json:"code"` // ISO 4217, e.g. "USD"
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// DefaultDecimals is used when a currency row is created implicitly by ingestion
const DefaultDecimals = 6

// NormalizeCode upper-cases and validates a 3-letter currency code
func NormalizeCode(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !currencyCodeRe.MatchString(c) {
		return "", fmt.Errorf("%w: currency code %q must be 3 letters A-Z", ErrInvalidParam, code)
	}
	return c, nil
}

// ExchangeSource 환율 데이터 소스
type ExchangeSource struct {
	Code    string `json:"code"` // e.g. "frankfurter"
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
}

// Timeframe is the storage cadence label of a rate, model spec or run
type Timeframe string

const (
	TimeframeDaily   Timeframe = "D"
	TimeframeWeekly  Timeframe = "W"
	TimeframeMonthly Timeframe = "M"
)

// ParseTimeframe accepts D/W/M (any case) or daily/weekly/monthly
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "daily":
		return TimeframeDaily, nil
	case "w", "weekly":
		return TimeframeWeekly, nil
	case "m", "monthly":
		return TimeframeMonthly, nil
	}
	return "", fmt.Errorf("%w: unknown timeframe %q", ErrInvalidParam, s)
}

// Label returns the lower-case word used in model spec codes
func (t Timeframe) Label() string {
	switch t {
	case TimeframeWeekly:
		return "weekly"
	case TimeframeMonthly:
		return "monthly"
	default:
		return "daily"
	}
}

// RateObservation 저장된 환율 1건 (natural key: source, base, quote, timeframe, date)
type RateObservation struct {
	Source    string          `json:"source"`
	Base      string          `json:"base"`
	Quote     string          `json:"quote"`
	Timeframe Timeframe       `json:"timeframe"`
	Date      time.Time       `json:"date"`
	Rate      decimal.Decimal `json:"rate"`
}

// RateQuery selects rates for one pair; nil bounds are open
type RateQuery struct {
	Source    string
	Base      string
	Quote     string
	Timeframe Timeframe
	Start     *time.Time
	End       *time.Time
}
