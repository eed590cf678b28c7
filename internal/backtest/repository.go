package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/forecast"
	"github.com/wonny/fxlab/pkg/database"
)

// Repository backtest 데이터 저장소
type Repository struct {
	db database.Querier
}

// NewRepository 새 저장소 생성
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// SliceRow is a stored slice with its pair
type SliceRow struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
	contracts.BacktestSlice
}

// CreateRun upserts the model spec and inserts the run row
func (r *Repository) CreateRun(ctx context.Context, spec contracts.ModelSpec, run contracts.BacktestRun) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		modelID, err := forecast.UpsertModelSpec(ctx, tx, spec)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO fx.backtest_runs (id, model_id, timeframe, horizon_days, window_start, window_end, notes)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)`
		_, err = tx.Exec(ctx, query,
			run.ID.String(), modelID, string(run.Timeframe), run.HorizonDays,
			contracts.DateOf(run.WindowStart), contracts.DateOf(run.WindowEnd), run.Notes,
		)
		if err != nil {
			return fmt.Errorf("insert backtest run: %w", err)
		}
		return nil
	})
}

// SaveQuote stores slices and the metric row of one quote in a single transaction.
// Existing slices and metrics are never overwritten.
func (r *Repository) SaveQuote(ctx context.Context, runID uuid.UUID, base, quote string, slices []contracts.BacktestSlice, m contracts.Metrics) (int, error) {
	inserted := 0
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if len(slices) > 0 {
			dates := make([]time.Time, len(slices))
			actual := make([]float64, len(slices))
			fcst := make([]float64, len(slices))
			for i, s := range slices {
				dates[i], actual[i], fcst[i] = s.Date, s.Actual, s.Forecast
			}

			query := `
				INSERT INTO fx.backtest_slices (run_id, base, quote, slice_date, actual, forecast)
				SELECT $1::uuid, $2, $3, t.slice_date, t.actual, t.forecast
				FROM unnest($4::date[], $5::numeric[], $6::numeric[]) AS t(slice_date, actual, forecast)
				ON CONFLICT (run_id, base, quote, slice_date) DO NOTHING`
			tag, err := tx.Exec(ctx, query, runID.String(), base, quote,
				dates, forecast.DecimalStrings(actual), forecast.DecimalStrings(fcst))
			if err != nil {
				return fmt.Errorf("insert backtest slices %s/%s: %w", base, quote, err)
			}
			inserted = int(tag.RowsAffected())
		}

		row := contracts.NewBacktestMetric(runID, base, quote, m)
		query := `
			INSERT INTO fx.backtest_metrics (run_id, base, quote, mape, rmse, mae, n)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (run_id, base, quote) DO NOTHING`
		if _, err := tx.Exec(ctx, query, runID.String(), base, quote, row.MAPE, row.RMSE, row.MAE, row.N); err != nil {
			return fmt.Errorf("insert backtest metric %s/%s: %w", base, quote, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// UpdateWindow sets the run bounds to the produced slice dates
func (r *Repository) UpdateWindow(ctx context.Context, runID uuid.UUID, start, end time.Time) error {
	query := `UPDATE fx.backtest_runs SET window_start = $2, window_end = $3 WHERE id = $1::uuid`
	_, err := r.db.Exec(ctx, query, runID.String(), contracts.DateOf(start), contracts.DateOf(end))
	return err
}

// ListRuns 최근 백테스트 run 목록
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]contracts.BacktestRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT br.id::text, ms.code, br.timeframe, br.horizon_days,
		       br.window_start, br.window_end, br.notes, br.created_at
		FROM fx.backtest_runs br
		JOIN fx.model_specs ms ON ms.id = br.model_id
		ORDER BY br.created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []contracts.BacktestRun
	for rows.Next() {
		var (
			run         contracts.BacktestRun
			id, tfLabel string
		)
		if err := rows.Scan(&id, &run.ModelCode, &tfLabel, &run.HorizonDays,
			&run.WindowStart, &run.WindowEnd, &run.Notes, &run.CreatedAt); err != nil {
			return nil, err
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		run.Timeframe = contracts.Timeframe(tfLabel)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListMetrics per-quote metric rows of a run
func (r *Repository) ListMetrics(ctx context.Context, runID uuid.UUID) ([]contracts.BacktestMetric, error) {
	query := `
		SELECT base, quote, mape, rmse, mae, n
		FROM fx.backtest_metrics
		WHERE run_id = $1::uuid
		ORDER BY quote`

	rows, err := r.db.Query(ctx, query, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.BacktestMetric
	for rows.Next() {
		m := contracts.BacktestMetric{RunID: runID}
		if err := rows.Scan(&m.Base, &m.Quote, &m.MAPE, &m.RMSE, &m.MAE, &m.N); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSlices slices of a run, optionally for one quote
func (r *Repository) ListSlices(ctx context.Context, runID uuid.UUID, quote string) ([]SliceRow, error) {
	query := `
		SELECT base, quote, slice_date, actual::float8, forecast::float8
		FROM fx.backtest_slices
		WHERE run_id = $1::uuid
		  AND ($2::text = '' OR quote = $2)
		ORDER BY quote, slice_date`

	rows, err := r.db.Query(ctx, query, runID.String(), quote)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SliceRow
	for rows.Next() {
		var s SliceRow
		if err := rows.Scan(&s.Base, &s.Quote, &s.Date, &s.Actual, &s.Forecast); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
