package rates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/metrics"
	"github.com/wonny/fxlab/pkg/redis"
)

// DefaultBackfillYears 기본 백필 기간
const DefaultBackfillYears = 10

// Fetcher reads rates from an upstream API
type Fetcher interface {
	Source() contracts.ExchangeSource
	FetchRange(ctx context.Context, start, end time.Time, base string, quotes []string) ([]contracts.RateObservation, error)
	FetchDay(ctx context.Context, d time.Time, base string, quotes []string) ([]contracts.RateObservation, error)
}

// Store is the write side of the rate store
type Store interface {
	EnsureSource(ctx context.Context, src contracts.ExchangeSource) error
	EnsureCurrency(ctx context.Context, code string) error
	InsertRates(ctx context.Context, obs []contracts.RateObservation) (int, error)
	MaxDate(ctx context.Context, source, base string) (*time.Time, error)
}

// Result reports one ingestion
type Result struct {
	Base      string    `json:"base"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Chunks    int       `json:"chunks"`
	Attempted int       `json:"attempted"`
	Inserted  int       `json:"inserted"`
	UpToDate  bool      `json:"up_to_date,omitempty"`
}

// Ingestor pulls rates from a Fetcher into the store. Inserts are idempotent.
type Ingestor struct {
	fetcher Fetcher
	store   Store
	cache   *redis.Cache
	logger  zerolog.Logger
	now     func() time.Time
}

// NewIngestor creates an ingestor
func NewIngestor(fetcher Fetcher, store Store, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		fetcher: fetcher,
		store:   store,
		logger:  log.With().Str("component", "rates.ingest").Logger(),
		now:     time.Now,
	}
}

// WithCache invalidates cached series of every pair that received rows
func (in *Ingestor) WithCache(cache *redis.Cache) *Ingestor {
	in.cache = cache
	return in
}

// Backfill ingests the last `years` years in monthly chunks
func (in *Ingestor) Backfill(ctx context.Context, years int, base string, quotes []string) (*Result, error) {
	if years <= 0 {
		years = DefaultBackfillYears
	}
	end := contracts.DateOf(in.now())
	start := end.AddDate(0, 0, -(365*years + 10))
	in.logger.Info().Int("years", years).Str("start", contracts.FormatDate(start)).Msg("backfill")
	return in.Range(ctx, start, end, base, quotes)
}

// Range ingests [start, end] in monthly chunks
func (in *Ingestor) Range(ctx context.Context, start, end time.Time, base string, quotes []string) (*Result, error) {
	base, quotes, err := normalizePair(base, quotes)
	if err != nil {
		return nil, err
	}
	start, end = contracts.DateOf(start), contracts.DateOf(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", contracts.ErrInvalidParam,
			contracts.FormatDate(end), contracts.FormatDate(start))
	}
	if err := in.prepare(ctx, base, quotes); err != nil {
		return nil, err
	}

	res := &Result{Base: base, Start: start, End: end}
	for _, chunk := range MonthChunks(start, end) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		obs, err := in.fetcher.FetchRange(ctx, chunk[0], chunk[1], base, quotes)
		if err != nil {
			return res, err
		}
		if err := in.write(ctx, res, obs); err != nil {
			return res, err
		}
		res.Chunks++

		in.logger.Info().
			Str("month", chunk[0].Format("2006-01")).
			Int("rows", len(obs)).
			Msg("month ingested")
	}

	in.finish(res)
	return res, nil
}

// Daily fetches only the days after the last stored date through today.
// With no stored data it starts three days back. Nothing to do is not an error.
func (in *Ingestor) Daily(ctx context.Context, base string, quotes []string) (*Result, error) {
	base, quotes, err := normalizePair(base, quotes)
	if err != nil {
		return nil, err
	}
	if err := in.prepare(ctx, base, quotes); err != nil {
		return nil, err
	}

	today := contracts.DateOf(in.now())
	last, err := in.store.MaxDate(ctx, in.fetcher.Source().Code, base)
	if err != nil {
		return nil, err
	}
	start := today.AddDate(0, 0, -3)
	if last != nil {
		start = contracts.DateOf(*last).AddDate(0, 0, 1)
	}

	res := &Result{Base: base, Start: start, End: today}
	if start.After(today) {
		res.UpToDate = true
		in.logger.Info().Str("base", base).Msg("daily ingest already up to date")
		return res, nil
	}

	obs, err := in.fetcher.FetchRange(ctx, start, today, base, quotes)
	if err != nil {
		return nil, err
	}
	res.Chunks = 1
	if err := in.write(ctx, res, obs); err != nil {
		return res, err
	}

	in.finish(res)
	return res, nil
}

// Day ingests a single date
func (in *Ingestor) Day(ctx context.Context, d time.Time, base string, quotes []string) (*Result, error) {
	base, quotes, err := normalizePair(base, quotes)
	if err != nil {
		return nil, err
	}
	if err := in.prepare(ctx, base, quotes); err != nil {
		return nil, err
	}

	d = contracts.DateOf(d)
	obs, err := in.fetcher.FetchDay(ctx, d, base, quotes)
	if err != nil {
		return nil, err
	}
	res := &Result{Base: base, Start: d, End: d, Chunks: 1}
	if err := in.write(ctx, res, obs); err != nil {
		return res, err
	}

	in.finish(res)
	return res, nil
}

func (in *Ingestor) prepare(ctx context.Context, base string, quotes []string) error {
	if err := in.store.EnsureSource(ctx, in.fetcher.Source()); err != nil {
		return err
	}
	for _, code := range append([]string{base}, quotes...) {
		if err := in.store.EnsureCurrency(ctx, code); err != nil {
			return err
		}
	}
	return nil
}

func (in *Ingestor) write(ctx context.Context, res *Result, obs []contracts.RateObservation) error {
	if len(obs) == 0 {
		return nil
	}

	// 응답에 요청하지 않은 통화가 섞여 올 수 있음
	seen := map[string]bool{}
	for _, o := range obs {
		if seen[o.Quote] {
			continue
		}
		seen[o.Quote] = true
		if err := in.store.EnsureCurrency(ctx, o.Quote); err != nil {
			return err
		}
	}

	inserted, err := in.store.InsertRates(ctx, obs)
	if err != nil {
		return err
	}
	res.Attempted += len(obs)
	res.Inserted += inserted
	metrics.RatesIngested.WithLabelValues(in.fetcher.Source().Code, res.Base).Add(float64(inserted))

	if in.cache != nil && inserted > 0 {
		for quote := range seen {
			prefix := redis.PairPrefix(in.fetcher.Source().Code, res.Base, quote)
			if _, err := in.cache.DeletePrefix(ctx, prefix); err != nil {
				in.logger.Warn().Err(err).Str("prefix", prefix).Msg("series cache invalidation failed")
			}
		}
	}
	return nil
}

func (in *Ingestor) finish(res *Result) {
	in.logger.Info().
		Str("base", res.Base).
		Str("start", contracts.FormatDate(res.Start)).
		Str("end", contracts.FormatDate(res.End)).
		Int("attempted", res.Attempted).
		Int("inserted", res.Inserted).
		Msg("ingest complete")
}

// MonthChunks splits [start, end] into inclusive calendar-month ranges
func MonthChunks(start, end time.Time) [][2]time.Time {
	start, end = contracts.DateOf(start), contracts.DateOf(end)
	var out [][2]time.Time
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cur.After(end) {
		next := cur.AddDate(0, 1, 0)
		lo, hi := cur, next.AddDate(0, 0, -1)
		if lo.Before(start) {
			lo = start
		}
		if hi.After(end) {
			hi = end
		}
		out = append(out, [2]time.Time{lo, hi})
		cur = next
	}
	return out
}

func normalizePair(base string, quotes []string) (string, []string, error) {
	b, err := contracts.NormalizeCode(base)
	if err != nil {
		return "", nil, err
	}
	out := make([]string, 0, len(quotes))
	for _, q := range quotes {
		if strings.TrimSpace(q) == "" {
			continue
		}
		c, err := contracts.NormalizeCode(q)
		if err != nil {
			return "", nil, err
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return "", nil, fmt.Errorf("%w: at least one quote currency required", contracts.ErrInvalidParam)
	}
	return b, out, nil
}
