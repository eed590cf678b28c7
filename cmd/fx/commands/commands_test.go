package commands

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/models"
)

func TestResolveIngestMode(t *testing.T) {
	tests := []struct {
		name    string
		daily   bool
		monthly bool
		start   string
		date    string
		want    ingestMode
		wantErr bool
	}{
		{name: "default is daily", want: modeDaily},
		{name: "daily", daily: true, want: modeDaily},
		{name: "monthly", monthly: true, want: modeMonthly},
		{name: "range", start: "2024-01-01", want: modeRange},
		{name: "day", date: "2024-03-01", want: modeDay},
		{name: "conflict", monthly: true, date: "2024-03-01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveIngestMode(tt.daily, tt.monthly, tt.start, tt.date)
			if tt.wantErr {
				assert.ErrorIs(t, err, contracts.ErrInvalidParam)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatters(t *testing.T) {
	v := 1.23456
	assert.Equal(t, "1.235", formatFloat(v, 3))
	assert.Equal(t, "-", formatFloat(math.NaN(), 3))
	assert.Equal(t, "-", formatPtr(nil, 3))
	assert.Equal(t, "1.23", formatPtr(&v, 2))
	assert.Equal(t, "✅", statusIcon(contracts.QuoteOK))
	assert.Equal(t, "❌", statusIcon(contracts.QuoteFailed))
}

func TestBacktestParamFlags(t *testing.T) {
	params, err := models.ParseAssignments([]string{"window=5", "order=1,1,0", "trend=add"})
	require.NoError(t, err)
	assert.Equal(t, 5, params["window"])
	assert.Equal(t, "add", params["trend"])

	_, err = models.ParseAssignments([]string{"window"})
	assert.Error(t, err)
	_, err = models.ParseAssignments([]string{"=3"})
	assert.Error(t, err)
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"ingest"}, {"check-missing"}, {"series", "peek"}, {"forecast", "daily"}, {"forecast", "weekly"},
		{"backtest", "run"}, {"ops", "daily"}, {"models", "list"}, {"db", "migrate"}, {"scheduler"}, {"api"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
