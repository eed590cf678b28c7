package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations are applied in order; applied versions are recorded in fx.schema_migrations
var migrations = []migration{
	{
		Version:     1,
		Description: "reference data and rate store",
		SQL: `
CREATE TABLE IF NOT EXISTS fx.currencies (
	code      CHAR(3) PRIMARY KEY CHECK (code ~ '^[A-Z]{3}$'),
	name      TEXT NOT NULL DEFAULT '',
	symbol    TEXT NOT NULL DEFAULT '',
	decimals  SMALLINT NOT NULL DEFAULT 6
);

CREATE TABLE IF NOT EXISTS fx.exchange_sources (
	code      TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	base_url  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS fx.exchange_rates (
	source     TEXT NOT NULL REFERENCES fx.exchange_sources(code),
	base       CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	quote      CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	timeframe  CHAR(1) NOT NULL DEFAULT 'D' CHECK (timeframe IN ('D','W','M')),
	rate_date  DATE NOT NULL,
	rate       NUMERIC(20,10) NOT NULL CHECK (rate > 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (source, base, quote, timeframe, rate_date)
);

CREATE INDEX IF NOT EXISTS idx_exchange_rates_pair_date
	ON fx.exchange_rates (base, quote, timeframe, rate_date);
`,
	},
	{
		Version:     2,
		Description: "model specs and forecasts",
		SQL: `
CREATE TABLE IF NOT EXISTS fx.model_specs (
	id            BIGSERIAL PRIMARY KEY,
	code          TEXT NOT NULL UNIQUE,
	name          TEXT NOT NULL,
	library       TEXT NOT NULL,
	timeframe     CHAR(1) NOT NULL CHECK (timeframe IN ('D','W','M')),
	horizon_days  INT NOT NULL DEFAULT 1 CHECK (horizon_days >= 1),
	params        JSONB NOT NULL DEFAULT '{}',
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fx.forecast_runs (
	id                BIGSERIAL PRIMARY KEY,
	timeframe         CHAR(1) NOT NULL,
	data_cutoff_date  DATE NOT NULL,
	model_name        TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'ok',
	rows_written      INT NOT NULL DEFAULT 0,
	run_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (timeframe, data_cutoff_date, model_name)
);

CREATE TABLE IF NOT EXISTS fx.forecasts (
	id           BIGSERIAL PRIMARY KEY,
	run_id       BIGINT NOT NULL REFERENCES fx.forecast_runs(id) ON DELETE CASCADE,
	model_id     BIGINT NOT NULL REFERENCES fx.model_specs(id),
	base         CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	quote        CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	target_date  DATE NOT NULL,
	yhat         NUMERIC(20,10) NOT NULL CHECK (yhat > 0),
	yhat_lower   NUMERIC(20,10),
	yhat_upper   NUMERIC(20,10),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (run_id, model_id, base, quote, target_date)
);

CREATE INDEX IF NOT EXISTS idx_forecasts_pair_target
	ON fx.forecasts (base, quote, target_date);
`,
	},
	{
		Version:     3,
		Description: "backtests",
		SQL: `
CREATE TABLE IF NOT EXISTS fx.backtest_runs (
	id            UUID PRIMARY KEY,
	model_id      BIGINT NOT NULL REFERENCES fx.model_specs(id),
	timeframe     CHAR(1) NOT NULL,
	horizon_days  INT NOT NULL CHECK (horizon_days >= 1),
	window_start  DATE NOT NULL,
	window_end    DATE NOT NULL,
	notes         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS fx.backtest_slices (
	run_id      UUID NOT NULL REFERENCES fx.backtest_runs(id) ON DELETE CASCADE,
	base        CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	quote       CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	slice_date  DATE NOT NULL,
	actual      NUMERIC(20,10) NOT NULL CHECK (actual > 0),
	forecast    NUMERIC(20,10) NOT NULL CHECK (forecast > 0),
	PRIMARY KEY (run_id, base, quote, slice_date)
);

CREATE TABLE IF NOT EXISTS fx.backtest_metrics (
	run_id  UUID NOT NULL REFERENCES fx.backtest_runs(id) ON DELETE CASCADE,
	base    CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	quote   CHAR(3) NOT NULL REFERENCES fx.currencies(code),
	mape    DOUBLE PRECISION,
	rmse    DOUBLE PRECISION,
	mae     DOUBLE PRECISION,
	n       INT NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, base, quote)
);
`,
	},
}

// Migrate applies pending schema migrations inside one transaction each
func Migrate(ctx context.Context, q Querier, log zerolog.Logger) (int, error) {
	if _, err := q.Exec(ctx, `
		CREATE SCHEMA IF NOT EXISTS fx;
		CREATE TABLE IF NOT EXISTS fx.schema_migrations (
			version     INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return 0, fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("get applied migrations: %w", err)
	}

	count := 0
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Info().Int("version", m.Version).Str("description", m.Description).Msg("applying migration")

		err := WithTx(ctx, q, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return fmt.Errorf("execute migration %d: %w", m.Version, err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO fx.schema_migrations (version, description) VALUES ($1, $2)`,
				m.Version, m.Description,
			); err != nil {
				return fmt.Errorf("record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// LatestVersion returns the highest migration version known to this binary
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

func appliedVersions(ctx context.Context, q Querier) (map[int]bool, error) {
	rows, err := q.Query(ctx, `SELECT version FROM fx.schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
