package rates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/database"
)

// Repository 환율/통화/소스 저장소
// ⭐ SSOT: exchange_rates 테이블 접근은 여기서만
type Repository struct {
	db database.Querier
}

// NewRepository 새 저장소 생성
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// GetCurrency returns contracts.ErrNotFound for unknown codes
func (r *Repository) GetCurrency(ctx context.Context, code string) (*contracts.Currency, error) {
	query := `SELECT code, name, symbol, decimals FROM fx.currencies WHERE code = $1`

	var c contracts.Currency
	err := r.db.QueryRow(ctx, query, code).Scan(&c.Code, &c.Name, &c.Symbol, &c.Decimals)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFoundf("currency %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get currency %s: %w", code, err)
	}
	return &c, nil
}

// ListCurrencies 전체 통화 목록
func (r *Repository) ListCurrencies(ctx context.Context) ([]contracts.Currency, error) {
	rows, err := r.db.Query(ctx, `SELECT code, name, symbol, decimals FROM fx.currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.Currency
	for rows.Next() {
		var c contracts.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol, &c.Decimals); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetSource returns contracts.ErrNotFound for unconfigured sources
func (r *Repository) GetSource(ctx context.Context, code string) (*contracts.ExchangeSource, error) {
	query := `SELECT code, name, base_url FROM fx.exchange_sources WHERE code = $1`

	var s contracts.ExchangeSource
	err := r.db.QueryRow(ctx, query, code).Scan(&s.Code, &s.Name, &s.BaseURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.NotFoundf("exchange source %s", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", code, err)
	}
	return &s, nil
}

// EnsureCurrency creates a placeholder currency row (name = symbol = code) if missing
func (r *Repository) EnsureCurrency(ctx context.Context, code string) error {
	query := `
		INSERT INTO fx.currencies (code, name, symbol, decimals)
		VALUES ($1, $1, $1, $2)
		ON CONFLICT (code) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, code, contracts.DefaultDecimals); err != nil {
		return fmt.Errorf("ensure currency %s: %w", code, err)
	}
	return nil
}

// EnsureSource creates the source row if missing
func (r *Repository) EnsureSource(ctx context.Context, src contracts.ExchangeSource) error {
	query := `
		INSERT INTO fx.exchange_sources (code, name, base_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO NOTHING`
	if _, err := r.db.Exec(ctx, query, src.Code, src.Name, src.BaseURL); err != nil {
		return fmt.Errorf("ensure source %s: %w", src.Code, err)
	}
	return nil
}

// GetRates returns stored rates for one pair ascending by date
func (r *Repository) GetRates(ctx context.Context, q contracts.RateQuery) ([]contracts.Point, error) {
	tf := q.Timeframe
	if tf == "" {
		tf = contracts.TimeframeDaily
	}

	query := `
		SELECT rate_date, rate::float8
		FROM fx.exchange_rates
		WHERE source = $1 AND base = $2 AND quote = $3 AND timeframe = $4
		  AND ($5::date IS NULL OR rate_date >= $5)
		  AND ($6::date IS NULL OR rate_date <= $6)
		ORDER BY rate_date`

	rows, err := r.db.Query(ctx, query, q.Source, q.Base, q.Quote, string(tf), q.Start, q.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pts []contracts.Point
	for rows.Next() {
		var p contracts.Point
		if err := rows.Scan(&p.Date, &p.Value); err != nil {
			return nil, err
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// InsertRates bulk inserts observations; existing natural keys are left untouched.
// Returns the number of rows actually inserted.
func (r *Repository) InsertRates(ctx context.Context, obs []contracts.RateObservation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	var (
		sources = make([]string, len(obs))
		bases   = make([]string, len(obs))
		quotes  = make([]string, len(obs))
		tfs     = make([]string, len(obs))
		dates   = make([]time.Time, len(obs))
		values  = make([]string, len(obs))
	)
	for i, o := range obs {
		if !o.Rate.IsPositive() {
			f, _ := o.Rate.Float64()
			return 0, &contracts.DataQualityError{Base: o.Base, Quote: o.Quote, Date: o.Date, Field: "rate", Value: f}
		}
		tf := o.Timeframe
		if tf == "" {
			tf = contracts.TimeframeDaily
		}
		sources[i], bases[i], quotes[i], tfs[i] = o.Source, o.Base, o.Quote, string(tf)
		dates[i], values[i] = contracts.DateOf(o.Date), o.Rate.String()
	}

	query := `
		INSERT INTO fx.exchange_rates (source, base, quote, timeframe, rate_date, rate)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::date[], $6::numeric[])
		ON CONFLICT (source, base, quote, timeframe, rate_date) DO NOTHING`

	tag, err := r.db.Exec(ctx, query, sources, bases, quotes, tfs, dates, values)
	if err != nil {
		return 0, fmt.Errorf("insert rates: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// MaxDate is the last stored daily date for a base across all quotes; nil when empty
func (r *Repository) MaxDate(ctx context.Context, source, base string) (*time.Time, error) {
	query := `
		SELECT MAX(rate_date) FROM fx.exchange_rates
		WHERE source = $1 AND base = $2 AND timeframe = 'D'`

	var d *time.Time
	if err := r.db.QueryRow(ctx, query, source, base).Scan(&d); err != nil {
		return nil, fmt.Errorf("max rate date %s: %w", base, err)
	}
	return d, nil
}

// DateRange is the stored daily date range of a base; both nil when empty
func (r *Repository) DateRange(ctx context.Context, source, base string) (*time.Time, *time.Time, error) {
	query := `
		SELECT MIN(rate_date), MAX(rate_date) FROM fx.exchange_rates
		WHERE source = $1 AND base = $2 AND timeframe = 'D'`

	var lo, hi *time.Time
	if err := r.db.QueryRow(ctx, query, source, base).Scan(&lo, &hi); err != nil {
		return nil, nil, fmt.Errorf("rate date range %s: %w", base, err)
	}
	return lo, hi, nil
}

// ObservedDates lists stored daily dates of one pair within [start, end]
func (r *Repository) ObservedDates(ctx context.Context, source, base, quote string, start, end time.Time) ([]time.Time, error) {
	query := `
		SELECT rate_date FROM fx.exchange_rates
		WHERE source = $1 AND base = $2 AND quote = $3 AND timeframe = 'D'
		  AND rate_date BETWEEN $4 AND $5
		ORDER BY rate_date`

	rows, err := r.db.Query(ctx, query, source, base, quote, contracts.DateOf(start), contracts.DateOf(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, contracts.DateOf(d))
	}
	return out, rows.Err()
}
