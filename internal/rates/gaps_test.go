package rates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGapStore struct {
	lo, hi   *time.Time
	observed map[string][]time.Time
}

func (f *fakeGapStore) DateRange(ctx context.Context, source, base string) (*time.Time, *time.Time, error) {
	return f.lo, f.hi, nil
}

func (f *fakeGapStore) ObservedDates(ctx context.Context, source, base, quote string, start, end time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, d := range f.observed[quote] {
		if !d.Before(start) && !d.After(end) {
			out = append(out, d)
		}
	}
	return out, nil
}

func TestFindGaps(t *testing.T) {
	lo, hi := day("2024-02-26"), day("2024-03-08")
	store := &fakeGapStore{
		lo: &lo,
		hi: &hi,
		observed: map[string][]time.Time{
			"EUR": {
				day("2024-02-26"), day("2024-02-27"), day("2024-02-28"), day("2024-02-29"), day("2024-03-01"),
				day("2024-03-04"), day("2024-03-05"), day("2024-03-06"), day("2024-03-07"), day("2024-03-08"),
			},
			"GBP": {day("2024-02-26"), day("2024-02-27"), day("2024-03-04"), day("2024-03-05"), day("2024-03-06"), day("2024-03-07"), day("2024-03-08")},
		},
	}

	scan, err := FindGaps(context.Background(), store, "frankfurter", "USD", []string{"EUR", "GBP"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, lo, scan.From)
	assert.Equal(t, hi, scan.To)
	require.Len(t, scan.Pairs, 2)
	assert.Empty(t, scan.Pairs[0].Missing, "weekends are not gaps")
	assert.Equal(t, []time.Time{day("2024-02-28"), day("2024-02-29"), day("2024-03-01")}, scan.Pairs[1].Missing)
	assert.False(t, scan.Complete())

	start := day("2024-03-04")
	scan, err = FindGaps(context.Background(), store, "frankfurter", "USD", []string{"GBP"}, &start, nil)
	require.NoError(t, err)
	assert.True(t, scan.Complete())
}

func TestFindGaps_NoData(t *testing.T) {
	_, err := FindGaps(context.Background(), &fakeGapStore{}, "frankfurter", "USD", []string{"EUR"}, nil, nil)
	assert.ErrorIs(t, err, ErrNoRates)
}
