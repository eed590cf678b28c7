package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/config"
	"github.com/wonny/fxlab/pkg/httputil"
	"github.com/wonny/fxlab/pkg/logger"
)

func day(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestFrankfurter(t *testing.T, handler http.HandlerFunc) *Frankfurter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFrankfurter(config.FrankfurterConfig{
		SourceCode: "frankfurter",
		BaseURL:    srv.URL + "/",
		Timeout:    5 * time.Second,
	}, logger.Nop())
}

func TestFrankfurter_FetchRange(t *testing.T) {
	var gotPath, gotFrom, gotTo string
	f := newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotFrom, gotTo = r.URL.Path, r.URL.Query().Get("from"), r.URL.Query().Get("to")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"amount":1.0,"base":"USD","start_date":"2024-03-01","end_date":"2024-03-04",
			"rates":{"2024-03-04":{"GBP":0.78912,"EUR":0.92251},"2024-03-01":{"EUR":0.92336,"GBP":0.79}}}`))
	})

	obs, err := f.FetchRange(context.Background(), day("2024-03-01"), day("2024-03-04"), "usd", []string{"eur", "GBP"})
	require.NoError(t, err)

	assert.Equal(t, "/2024-03-01..2024-03-04", gotPath)
	assert.Equal(t, "USD", gotFrom)
	assert.Equal(t, "EUR,GBP", gotTo)

	require.Len(t, obs, 4)
	assert.Equal(t, day("2024-03-01"), obs[0].Date)
	assert.Equal(t, "EUR", obs[0].Quote)
	assert.Equal(t, "0.92336", obs[0].Rate.String())
	assert.Equal(t, "GBP", obs[1].Quote)
	assert.Equal(t, day("2024-03-04"), obs[3].Date)
	assert.Equal(t, "0.78912", obs[3].Rate.String())
	for _, o := range obs {
		assert.Equal(t, "frankfurter", o.Source)
		assert.Equal(t, contracts.TimeframeDaily, o.Timeframe)
	}
}

func TestFrankfurter_FetchDay(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"published", `{"base":"USD","date":"2024-03-04","rates":{"EUR":0.92251}}`, 1},
		{"holiday answers previous day", `{"base":"USD","date":"2024-03-29","rates":{"EUR":0.92}}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			d := day("2024-03-04")
			if tt.want == 0 {
				d = day("2024-04-01")
			}
			obs, err := f.FetchDay(context.Background(), d, "USD", []string{"EUR"})
			require.NoError(t, err)
			assert.Len(t, obs, tt.want)
		})
	}
}

func TestFrankfurter_StatusError(t *testing.T) {
	f := newTestFrankfurter(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	})

	_, err := f.FetchRange(context.Background(), day("2024-03-01"), day("2024-03-04"), "USD", []string{"EUR"})
	require.Error(t, err)

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
