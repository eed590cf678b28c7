package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/database"
)

// Repository forecast 데이터 저장소
type Repository struct {
	db database.Querier
}

// NewRepository 새 저장소 생성
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// SaveForecast 모델 스펙 upsert, 실행(run) get-or-create, 예측 행 저장을 한 트랜잭션으로 처리
func (r *Repository) SaveForecast(ctx context.Context, rec Record) (*SaveResult, error) {
	out := &SaveResult{}

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		modelID, err := UpsertModelSpec(ctx, tx, rec.Spec)
		if err != nil {
			return err
		}
		out.ModelID = modelID

		runID, err := getOrCreateRun(ctx, tx, rec.Timeframe, rec.Cutoff, rec.ModelName)
		if err != nil {
			return err
		}
		out.RunID = runID

		inserted, err := insertRows(ctx, tx, runID, modelID, rec.Base, rec.Quote, rec.Result)
		if err != nil {
			return err
		}
		out.Inserted = inserted

		if inserted > 0 {
			query := `UPDATE fx.forecast_runs SET rows_written = rows_written + $2 WHERE id = $1`
			if _, err := tx.Exec(ctx, query, runID, inserted); err != nil {
				return fmt.Errorf("update rows_written: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertModelSpec 코드 기준 get-or-create (기존 행은 변경하지 않음)
func UpsertModelSpec(ctx context.Context, q database.Querier, spec contracts.ModelSpec) (int64, error) {
	params, err := json.Marshal(spec.Params)
	if err != nil {
		return 0, fmt.Errorf("encode model params: %w", err)
	}

	query := `
		INSERT INTO fx.model_specs (code, name, library, timeframe, horizon_days, params, active)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id`

	var id int64
	err = q.QueryRow(ctx, query,
		spec.Code, spec.Name, string(spec.Library), string(spec.Timeframe),
		spec.HorizonDays, string(params), spec.Active,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert model spec %s: %w", spec.Code, err)
	}
	return id, nil
}

// getOrCreateRun relies on UNIQUE (timeframe, data_cutoff_date, model_name) so concurrent
// callers converge on one row
func getOrCreateRun(ctx context.Context, q database.Querier, tf contracts.Timeframe, cutoff time.Time, model string) (int64, error) {
	query := `
		INSERT INTO fx.forecast_runs (timeframe, data_cutoff_date, model_name, status)
		VALUES ($1, $2, $3, 'ok')
		ON CONFLICT (timeframe, data_cutoff_date, model_name)
		DO UPDATE SET status = 'ok'
		RETURNING id`

	var id int64
	if err := q.QueryRow(ctx, query, string(tf), contracts.DateOf(cutoff), model).Scan(&id); err != nil {
		return 0, fmt.Errorf("get or create forecast run: %w", err)
	}
	return id, nil
}

func insertRows(ctx context.Context, q database.Querier, runID, modelID int64, base, quote string, res *contracts.ForecastResult) (int, error) {
	if res == nil || res.Len() == 0 {
		return 0, nil
	}

	dates := res.TargetDates()
	yhat := DecimalStrings(res.Yhat())
	lower := make([]*string, len(dates))
	upper := make([]*string, len(dates))
	if res.HasInterval() {
		lo, hi := DecimalStrings(res.Lower()), DecimalStrings(res.Upper())
		for i := range dates {
			lower[i], upper[i] = &lo[i], &hi[i]
		}
	}

	query := `
		INSERT INTO fx.forecasts (run_id, model_id, base, quote, target_date, yhat, yhat_lower, yhat_upper)
		SELECT $1, $2, $3, $4, t.target_date, t.yhat, t.lower, t.upper
		FROM unnest($5::date[], $6::numeric[], $7::numeric[], $8::numeric[])
			AS t(target_date, yhat, lower, upper)
		ON CONFLICT (run_id, model_id, base, quote, target_date) DO NOTHING`

	tag, err := q.Exec(ctx, query, runID, modelID, base, quote, dates, yhat, lower, upper)
	if err != nil {
		return 0, fmt.Errorf("insert forecasts %s/%s: %w", base, quote, err)
	}
	return int(tag.RowsAffected()), nil
}

// DecimalStrings formats floats as exact decimal literals for numeric columns
func DecimalStrings(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v).String()
	}
	return out
}

// LatestForecasts base 에 예측이 있는 가장 최근 cutoff 기준 조회
func (r *Repository) LatestForecasts(ctx context.Context, tf contracts.Timeframe, base string) ([]contracts.ForecastRow, error) {
	query := `
		SELECT f.run_id, ms.code, f.base, f.quote, f.target_date,
		       f.yhat::float8, f.yhat_lower::float8, f.yhat_upper::float8, r.data_cutoff_date
		FROM fx.forecasts f
		JOIN fx.forecast_runs r ON r.id = f.run_id
		JOIN fx.model_specs ms ON ms.id = f.model_id
		WHERE r.timeframe = $1
		  AND f.base = $2
		  AND r.data_cutoff_date = (
			SELECT MAX(r2.data_cutoff_date)
			FROM fx.forecast_runs r2
			WHERE r2.timeframe = $1
			  AND EXISTS (SELECT 1 FROM fx.forecasts f2 WHERE f2.run_id = r2.id AND f2.base = $2)
		  )
		ORDER BY f.quote, ms.code, f.target_date`

	rows, err := r.db.Query(ctx, query, string(tf), base)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []contracts.ForecastRow
	for rows.Next() {
		var row contracts.ForecastRow
		if err := rows.Scan(
			&row.RunID, &row.ModelCode, &row.Base, &row.Quote, &row.TargetDate,
			&row.Yhat, &row.Lower, &row.Upper, &row.CutoffDate,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListModelSpecs 모델 스펙 목록 (tf 빈 값이면 전체)
func (r *Repository) ListModelSpecs(ctx context.Context, tf contracts.Timeframe, activeOnly bool) ([]contracts.ModelSpec, error) {
	query := `
		SELECT id, code, name, library, timeframe, horizon_days, params, active
		FROM fx.model_specs
		WHERE ($1::text = '' OR timeframe = $1)
		  AND (NOT $2::bool OR active)
		ORDER BY code`

	rows, err := r.db.Query(ctx, query, string(tf), activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []contracts.ModelSpec
	for rows.Next() {
		var (
			spec             contracts.ModelSpec
			library, tfLabel string
			params           []byte
		)
		if err := rows.Scan(&spec.ID, &spec.Code, &spec.Name, &library, &tfLabel, &spec.HorizonDays, &params, &spec.Active); err != nil {
			return nil, err
		}
		spec.Library = contracts.ModelLibrary(library)
		spec.Timeframe = contracts.Timeframe(tfLabel)
		if len(params) > 0 {
			if err := json.Unmarshal(params, &spec.Params); err != nil {
				return nil, fmt.Errorf("decode params of %s: %w", spec.Code, err)
			}
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// ListRuns 최근 forecast run 목록
func (r *Repository) ListRuns(ctx context.Context, tf contracts.Timeframe, limit int) ([]contracts.ForecastRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, timeframe, data_cutoff_date, model_name, status, rows_written, run_at
		FROM fx.forecast_runs
		WHERE ($1::text = '' OR timeframe = $1)
		ORDER BY data_cutoff_date DESC, id DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, string(tf), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []contracts.ForecastRun
	for rows.Next() {
		var (
			run     contracts.ForecastRun
			tfLabel string
		)
		if err := rows.Scan(&run.ID, &tfLabel, &run.DataCutoffDate, &run.ModelName, &run.Status, &run.RowsWritten, &run.RunAt); err != nil {
			return nil, err
		}
		run.Timeframe = contracts.Timeframe(tfLabel)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
