package rates

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/metrics"
	"github.com/wonny/fxlab/pkg/config"
	"github.com/wonny/fxlab/pkg/httputil"
	"github.com/wonny/fxlab/pkg/logger"
)

// Frankfurter is the ECB reference rate API client
type Frankfurter struct {
	client  *httputil.Client
	baseURL string
	source  string
	logger  zerolog.Logger
}

// rangeResponse is GET /{start}..{end}
type rangeResponse struct {
	Base  string                                `json:"base"`
	Rates map[string]map[string]decimal.Decimal `json:"rates"`
}

// dayResponse is GET /{date}
type dayResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// NewFrankfurter creates a rate limited, retrying client
func NewFrankfurter(cfg config.FrankfurterConfig, log *logger.Logger) *Frankfurter {
	client := httputil.New(log, cfg.Timeout).WithRateLimit(cfg.RequestsPerSecond)
	return &Frankfurter{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		source:  cfg.SourceCode,
		logger:  log.Component("rates.frankfurter"),
	}
}

// Source describes the API as an exchange source row
func (f *Frankfurter) Source() contracts.ExchangeSource {
	return contracts.ExchangeSource{Code: f.source, Name: "Frankfurter", BaseURL: f.baseURL}
}

// FetchRange returns observations for [start, end], ascending by date then quote
func (f *Frankfurter) FetchRange(ctx context.Context, start, end time.Time, base string, quotes []string) ([]contracts.RateObservation, error) {
	endpoint := fmt.Sprintf("%s/%s..%s?%s", f.baseURL,
		contracts.FormatDate(start), contracts.FormatDate(end), pairQuery(base, quotes))

	var resp rangeResponse
	began := time.Now()
	err := f.client.GetJSON(ctx, endpoint, &resp)
	metrics.ObserveSourceCall(f.source, time.Since(began), err)
	if err != nil {
		return nil, fmt.Errorf("frankfurter range %s..%s: %w", contracts.FormatDate(start), contracts.FormatDate(end), err)
	}

	var obs []contracts.RateObservation
	for ds, perDay := range resp.Rates {
		d, err := contracts.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("frankfurter date %q: %w", ds, err)
		}
		obs = append(obs, f.observations(base, d, perDay)...)
	}
	sortObservations(obs)

	f.logger.Debug().
		Str("base", base).
		Str("start", contracts.FormatDate(start)).
		Str("end", contracts.FormatDate(end)).
		Int("days", len(resp.Rates)).
		Int("rows", len(obs)).
		Msg("range fetched")
	return obs, nil
}

// FetchDay returns the rates published for d. Frankfurter answers non-publishing days
// with the previous business day; those answers yield no observations.
func (f *Frankfurter) FetchDay(ctx context.Context, d time.Time, base string, quotes []string) ([]contracts.RateObservation, error) {
	endpoint := fmt.Sprintf("%s/%s?%s", f.baseURL, contracts.FormatDate(d), pairQuery(base, quotes))

	var resp dayResponse
	began := time.Now()
	err := f.client.GetJSON(ctx, endpoint, &resp)
	metrics.ObserveSourceCall(f.source, time.Since(began), err)
	if err != nil {
		return nil, fmt.Errorf("frankfurter day %s: %w", contracts.FormatDate(d), err)
	}

	if resp.Date != contracts.FormatDate(d) {
		f.logger.Info().Str("requested", contracts.FormatDate(d)).Str("published", resp.Date).Msg("no rates published for day")
		return nil, nil
	}

	obs := f.observations(base, contracts.DateOf(d), resp.Rates)
	sortObservations(obs)
	return obs, nil
}

func (f *Frankfurter) observations(base string, d time.Time, perDay map[string]decimal.Decimal) []contracts.RateObservation {
	out := make([]contracts.RateObservation, 0, len(perDay))
	for quote, rate := range perDay {
		out = append(out, contracts.RateObservation{
			Source:    f.source,
			Base:      base,
			Quote:     strings.ToUpper(quote),
			Timeframe: contracts.TimeframeDaily,
			Date:      d,
			Rate:      rate,
		})
	}
	return out
}

func pairQuery(base string, quotes []string) string {
	v := url.Values{}
	v.Set("from", strings.ToUpper(base))
	if len(quotes) > 0 {
		up := make([]string, len(quotes))
		for i, q := range quotes {
			up[i] = strings.ToUpper(q)
		}
		v.Set("to", strings.Join(up, ","))
	}
	return v.Encode()
}

func sortObservations(obs []contracts.RateObservation) {
	sort.Slice(obs, func(i, j int) bool {
		if !obs[i].Date.Equal(obs[j].Date) {
			return obs[i].Date.Before(obs[j].Date)
		}
		return obs[i].Quote < obs[j].Quote
	})
}
