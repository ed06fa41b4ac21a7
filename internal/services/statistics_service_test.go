package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climate-records/internal/models"
	"climate-records/internal/query"
)

func TestRankCountries(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		params query.Values
		want   []string
	}{
		{
			name:   "last ten years descending",
			params: query.Values{"period_type": "last-m-years", "period_value": "10", "num_countries": "5", "order_dir": "DESC"},
			want:   []string{"France", "Germany", "Chad"},
		},
		{
			name:   "ascending by default",
			params: query.Values{"period_type": "last-m-years", "period_value": "10", "num_countries": "5"},
			want:   []string{"Chad", "Germany", "France"},
		},
		{
			name:   "specific year",
			params: query.Values{"period_type": "specific-year", "period_value": "1995", "num_countries": "5", "order_dir": "DESC"},
			want:   []string{"Germany", "France", "Chad"},
		},
		{
			name:   "truncated",
			params: query.Values{"period_type": "specific-year", "period_value": "1995", "num_countries": "2", "order_dir": "DESC"},
			want:   []string{"Germany", "France"},
		},
		{
			name:   "last year only",
			params: query.Values{"period_type": "last-m-years", "period_value": "5", "num_countries": "5", "order_dir": "DESC"},
			want:   []string{"Germany", "France", "Chad"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rankings, err := f.stats.RankCountries(context.Background(), tt.params)
			require.NoError(t, err)
			names := make([]string, 0, len(rankings))
			for _, r := range rankings {
				names = append(names, r.Name)
			}
			assert.Equal(t, tt.want, names, "continents never appear in the ranking")
		})
	}
}

func TestRankCountriesSumsShares(t *testing.T) {
	f := newFixture(t)

	rankings, err := f.stats.RankCountries(context.Background(), query.Values{
		"period_type": "last-m-years", "period_value": "10", "num_countries": "1", "order_dir": "DESC",
	})
	require.NoError(t, err)
	require.Len(t, rankings, 1)
	assert.Equal(t, "France", rankings[0].Name)
	require.NotNil(t, rankings[0].ShareOfTemperatureChangeFromGHG)
	assert.InDelta(t, 3.3, *rankings[0].ShareOfTemperatureChangeFromGHG, 1e-9)
}

func TestRankCountriesEmpty(t *testing.T) {
	f := newFixture(t)

	rankings, err := f.stats.RankCountries(context.Background(), query.Values{
		"period_type": "specific-year", "period_value": "1950", "num_countries": "3",
	})
	require.NoError(t, err)
	assert.NotNil(t, rankings)
	assert.Empty(t, rankings)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.env.Metrics.EmptyResultsTotal.WithLabelValues("countries")))
}

func TestRankCountriesValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		params    query.Values
		wantField string
	}{
		{"missing period type", query.Values{"period_value": "10", "num_countries": "3"}, "period_type"},
		{"unknown period type", query.Values{"period_type": "decade", "period_value": "10", "num_countries": "3"}, "period_type"},
		{"year before the era", query.Values{"period_type": "specific-year", "period_value": "1850", "num_countries": "3"}, "period_value"},
		{"zero years", query.Values{"period_type": "last-m-years", "period_value": "0", "num_countries": "3"}, "period_value"},
		{"missing count", query.Values{"period_type": "last-m-years", "period_value": "10"}, "num_countries"},
		{"bad direction", query.Values{"period_type": "last-m-years", "period_value": "10", "num_countries": "3", "order_dir": "up"}, "order_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verrs models.ValidationErrors
			_, err := f.stats.RankCountries(context.Background(), tt.params)
			require.True(t, errors.As(err, &verrs), "got %v", err)
			assert.Contains(t, verrs.Fields(), tt.wantField)
		})
	}
}
