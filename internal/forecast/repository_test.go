package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/contracts"
)

func TestRepository_SaveForecast(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	res, err := contracts.NewForecastResult("naive", []time.Time{day("2024-03-04")}, []float64{1.0875})
	require.NoError(t, err)
	spec := contracts.NewModelSpec("naive", contracts.LibraryBaseline, contracts.TimeframeDaily, 1, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fx.model_specs").
		WithArgs("naive-daily", "Naive (Daily)", "baseline", "D", 1, "{}", true).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO fx.forecast_runs").
		WithArgs("D", day("2024-03-01"), "naive").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("INSERT INTO fx.forecasts").
		WithArgs(int64(11), int64(3), "USD", "EUR",
			[]time.Time{day("2024-03-04")}, []string{"1.0875"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE fx.forecast_runs SET rows_written").
		WithArgs(int64(11), 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	out, err := NewRepository(mock).SaveForecast(ctx, Record{
		Spec:      spec,
		Timeframe: contracts.TimeframeDaily,
		Cutoff:    day("2024-03-01"),
		ModelName: "naive",
		Base:      "USD",
		Quote:     "EUR",
		Result:    res,
	})
	require.NoError(t, err)
	assert.Equal(t, &SaveResult{RunID: 11, ModelID: 3, Inserted: 1}, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveForecast_DuplicateRowsLeaveCounterAlone(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	res, err := contracts.NewForecastResult("naive", []time.Time{day("2024-03-04")}, []float64{1.1})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fx.model_specs").
		WithArgs("naive-daily", "Naive (Daily)", "baseline", "D", 1, "{}", true).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("INSERT INTO fx.forecast_runs").
		WithArgs("D", day("2024-03-01"), "naive").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectExec("INSERT INTO fx.forecasts").
		WithArgs(int64(11), int64(3), "USD", "EUR",
			[]time.Time{day("2024-03-04")}, []string{"1.1"}, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectCommit()

	out, err := NewRepository(mock).SaveForecast(ctx, Record{
		Spec:      contracts.NewModelSpec("naive", contracts.LibraryBaseline, contracts.TimeframeDaily, 1, nil),
		Timeframe: contracts.TimeframeDaily,
		Cutoff:    day("2024-03-01"),
		ModelName: "naive",
		Base:      "USD",
		Quote:     "EUR",
		Result:    res,
	})
	require.NoError(t, err)
	assert.Zero(t, out.Inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SaveForecast_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	res, err := contracts.NewForecastResult("naive", []time.Time{day("2024-03-04")}, []float64{1.1})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO fx.model_specs").
		WithArgs("naive-daily", "Naive (Daily)", "baseline", "D", 1, "{}", true).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err = NewRepository(mock).SaveForecast(ctx, Record{
		Spec:   contracts.NewModelSpec("naive", contracts.LibraryBaseline, contracts.TimeframeDaily, 1, nil),
		Result: res,
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LatestForecasts(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lo, hi := 1.05, 1.12
	mock.ExpectQuery("SELECT f.run_id, ms.code").
		WithArgs("D", "USD").
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "code", "base", "quote", "target_date", "yhat", "yhat_lower", "yhat_upper", "data_cutoff_date",
		}).
			AddRow(int64(11), "arima-daily", "USD", "EUR", day("2024-03-04"), 1.085, &lo, &hi, day("2024-03-01")).
			AddRow(int64(11), "naive-daily", "USD", "EUR", day("2024-03-04"), 1.0875, (*float64)(nil), (*float64)(nil), day("2024-03-01")))

	rows, err := NewRepository(mock).LatestForecasts(ctx, contracts.TimeframeDaily, "USD")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "arima-daily", rows[0].ModelCode)
	require.NotNil(t, rows[0].Lower)
	assert.Equal(t, 1.05, *rows[0].Lower)
	assert.Nil(t, rows[1].Upper)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ListModelSpecs(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM fx.model_specs").
		WithArgs("D", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "code", "name", "library", "timeframe", "horizon_days", "params", "active"}).
			AddRow(int64(1), "arima-daily", "Arima (Daily)", "arima", "D", 1, []byte(`{"order":"1,1,0"}`), true))

	specs, err := NewRepository(mock).ListModelSpecs(ctx, contracts.TimeframeDaily, true)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "arima", specs[0].ModelKey())
	assert.Equal(t, contracts.LibraryARIMA, specs[0].Library)
	assert.Equal(t, "1,1,0", specs[0].Params["order"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LatestForecasts_CutoffScopedToBase(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// 다른 base 의 더 최근 run 이 결과를 비우지 않도록 cutoff 는 base 기준
	mock.ExpectQuery(`SELECT MAX\(r2\.data_cutoff_date\)[\s\S]*f2\.base = \$2`).
		WithArgs("W", "EUR").
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "code", "base", "quote", "target_date", "yhat", "yhat_lower", "yhat_upper", "data_cutoff_date",
		}).AddRow(int64(4), "naive-weekly", "EUR", "USD", day("2024-03-08"), 1.09, (*float64)(nil), (*float64)(nil), day("2024-03-01")))

	rows, err := NewRepository(mock).LatestForecasts(ctx, contracts.TimeframeWeekly, "EUR")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, day("2024-03-01"), rows[0].CutoffDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
