package series

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/redis"
)

// DefaultSource is the rate source the loader reads unless configured otherwise
const DefaultSource = "frankfurter"

// FillPolicy controls gap handling on the daily path
type FillPolicy string

const (
	// FillNone returns exactly the observed dates
	FillNone FillPolicy = "none"
	// FillForwardWithin forward-fills onto business days between first and last observation
	FillForwardWithin FillPolicy = "ffill_within"
)

// ParseFill accepts none / ffill / ffill_within
func ParseFill(s string) (FillPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return FillNone, nil
	case "ffill", "ffill_within":
		return FillForwardWithin, nil
	}
	return "", fmt.Errorf("%w: unknown fill policy %q", contracts.ErrInvalidParam, s)
}

// RateReader is the read side of the rate store
type RateReader interface {
	GetRates(ctx context.Context, q contracts.RateQuery) ([]contracts.Point, error)
}

// ReferenceLookup resolves currencies and sources; unknown codes return contracts.ErrNotFound
type ReferenceLookup interface {
	GetCurrency(ctx context.Context, code string) (*contracts.Currency, error)
	GetSource(ctx context.Context, code string) (*contracts.ExchangeSource, error)
}

// Request describes one series load
type Request struct {
	Base  string
	Quote string
	Freq  contracts.Frequency
	Start *time.Time
	End   *time.Time
	Fill  FillPolicy
}

// Loader turns stored daily rates into calendar-normalised series.
// ⭐ SSOT: weekly 시계열은 항상 daily 데이터에서 파생
type Loader struct {
	rates    RateReader
	refs     ReferenceLookup
	source   string
	cache    *redis.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewLoader creates a loader reading the given source (DefaultSource when empty)
func NewLoader(rates RateReader, refs ReferenceLookup, source string, log zerolog.Logger) *Loader {
	if source == "" {
		source = DefaultSource
	}
	return &Loader{
		rates:  rates,
		refs:   refs,
		source: source,
		logger: log.With().Str("component", "series.loader").Logger(),
	}
}

// WithCache enables the read-through cache of raw daily points
func (l *Loader) WithCache(cache *redis.Cache, ttl time.Duration) *Loader {
	l.cache = cache
	l.cacheTTL = ttl
	return l
}

// Source returns the configured rate source code
func (l *Loader) Source() string {
	return l.source
}

// Load returns the series for req. No rows yields an empty series and a nil error;
// unknown currencies or an unconfigured source return contracts.ErrNotFound.
func (l *Loader) Load(ctx context.Context, req Request) (contracts.Series, error) {
	base := strings.ToUpper(strings.TrimSpace(req.Base))
	quote := strings.ToUpper(strings.TrimSpace(req.Quote))
	freq := req.Freq
	if freq == "" {
		freq = contracts.FreqDaily
	}

	if _, err := l.refs.GetCurrency(ctx, base); err != nil {
		return contracts.Series{}, fmt.Errorf("base currency %s: %w", base, err)
	}
	if _, err := l.refs.GetCurrency(ctx, quote); err != nil {
		return contracts.Series{}, fmt.Errorf("quote currency %s: %w", quote, err)
	}
	if _, err := l.refs.GetSource(ctx, l.source); err != nil {
		return contracts.Series{}, fmt.Errorf("rate source %s: %w", l.source, err)
	}

	raw, err := l.dailyPoints(ctx, base, quote, req.Start, req.End)
	if err != nil {
		return contracts.Series{}, err
	}

	// 정렬/중복 제거 후 리샘플링
	observed := contracts.NewSeries(base, quote, contracts.FreqDaily, raw).Points()
	observed = Clip(observed, req.Start, req.End)

	var pts []contracts.Point
	switch freq {
	case contracts.FreqWeekly:
		pts = StrictFridays(observed)
	default:
		if req.Fill == FillForwardWithin {
			pts = ForwardFillBusinessDays(observed)
		} else {
			pts = observed
		}
	}

	s := contracts.NewSeries(base, quote, freq, pts)
	l.logger.Debug().
		Str("pair", s.Pair()).
		Str("freq", string(freq)).
		Int("observed", len(observed)).
		Int("points", s.Len()).
		Msg("series loaded")

	return s, nil
}

func (l *Loader) dailyPoints(ctx context.Context, base, quote string, start, end *time.Time) ([]contracts.Point, error) {
	q := contracts.RateQuery{
		Source:    l.source,
		Base:      base,
		Quote:     quote,
		Timeframe: contracts.TimeframeDaily,
		Start:     start,
		End:       end,
	}

	if l.cache == nil {
		return l.readStore(ctx, q)
	}

	key := redis.SeriesKey(l.source, base, quote, dateKey(start), dateKey(end))
	var cached []contracts.Point
	found, err := l.cache.Get(ctx, key, &cached)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("series cache read failed")
	}
	if found {
		return cached, nil
	}

	pts, err := l.readStore(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := l.cache.Set(ctx, key, pts, l.cacheTTL); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("series cache write failed")
	}
	return pts, nil
}

func (l *Loader) readStore(ctx context.Context, q contracts.RateQuery) ([]contracts.Point, error) {
	pts, err := l.rates.GetRates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("get rates %s/%s: %w", q.Base, q.Quote, err)
	}
	return pts, nil
}

func dateKey(t *time.Time) string {
	if t == nil {
		return ""
	}
	return contracts.FormatDate(*t)
}
