package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"climate-records/internal/models"
)

func newSelect(t Table) *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("*").From(string(t))
	return sb
}

func requireValidationFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	require.Error(t, err)
	var ve models.ValidationErrors
	require.True(t, errors.As(err, &ve), "want ValidationErrors, got %T: %v", err, err)
	assert.Equal(t, fields, ve.Fields())
}

func TestIsISOCode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"FRA", true},
		{"USA", true},
		{"fra", false},
		{"FR", false},
		{"FRAN", false},
		{"France", false},
		{"F1A", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsISOCode(tt.in))
		})
	}
}

func TestYearAcceptingPrimitivesRejectOutOfRange(t *testing.T) {
	for _, year := range []string{"1899", "2000", "0", "-5", "3000"} {
		t.Run(year, func(t *testing.T) {
			err := Bind(Values{"year": year}, NewYearFilter(EmissionTable))
			requireValidationFields(t, err, "year")

			err = Bind(Values{"year": year}, NewYearSelector(GeneralTable))
			requireValidationFields(t, err, "year")

			err = Bind(Values{"period_type": PeriodSpecificYear, "period_value": year}, NewPeriodSelector(TemperatureTable))
			requireValidationFields(t, err, "period_value")
		})
	}

	for _, year := range []string{"1900", "1950", "1999"} {
		t.Run("accepts "+year, func(t *testing.T) {
			assert.NoError(t, Bind(Values{"year": year}, NewYearFilter(EmissionTable)))
			assert.NoError(t, Bind(Values{"year": year}, NewYearSelector(GeneralTable)))
			assert.NoError(t, Bind(Values{"period_type": PeriodSpecificYear, "period_value": year}, NewPeriodSelector(TemperatureTable)))
		})
	}
}

func TestYearFilter(t *testing.T) {
	f := NewYearFilter(EmissionTable)
	require.NoError(t, Bind(Values{}, f))
	assert.Nil(t, f.Year)
	sql, args := f.Apply(newSelect(EmissionTable)).Build()
	assert.NotContains(t, sql, "WHERE")
	assert.Empty(t, args)

	f = NewYearFilter(EmissionTable)
	require.NoError(t, Bind(url.Values{"year": {"1990"}}, f))
	sql, args = f.Apply(newSelect(EmissionTable)).Build()
	assert.Contains(t, sql, "emission_record.year >= ?")
	assert.Equal(t, []interface{}{1990}, args)

	requireValidationFields(t, Bind(Values{"year": "nineteen"}, NewYearFilter(EmissionTable)), "year")
}

func TestYearSelector(t *testing.T) {
	requireValidationFields(t, Bind(Values{}, NewYearSelector(GeneralTable)), "year")

	s := NewYearSelector(EnergyTable)
	require.NoError(t, Bind(Values{"year": "1995"}, s))
	sql, args := s.Apply(newSelect(EnergyTable)).Build()
	assert.Contains(t, sql, "energy_record.year = ?")
	assert.Equal(t, []interface{}{1995}, args)
}

func TestCountrySelector(t *testing.T) {
	requireValidationFields(t, Bind(Values{}, NewCountrySelector(GeneralTable)), "country")

	byName := NewCountrySelector(EmissionTable)
	require.NoError(t, Bind(Values{"country": "France"}, byName))
	assert.False(t, byName.IsISO())
	sql, args := byName.Apply(newSelect(EmissionTable)).Build()
	assert.Contains(t, sql, "emission_record.country = ?")
	assert.NotContains(t, sql, "iso_code")
	assert.Equal(t, []interface{}{"France"}, args)

	byCode := NewCountrySelector(EmissionTable)
	require.NoError(t, Bind(Values{"country": "FRA"}, byCode))
	assert.True(t, byCode.IsISO())
	sql, args = byCode.Apply(newSelect(EmissionTable)).Build()
	assert.Contains(t, sql, "emission_record.country IN (SELECT c.country FROM country c WHERE c.iso_code = ?)")
	assert.Equal(t, []interface{}{"FRA"}, args)
}

func TestCountrySelectorPostgresPlaceholders(t *testing.T) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("*").From(string(GeneralTable))

	c := NewCountrySelector(GeneralTable)
	y := NewYearSelector(GeneralTable)
	require.NoError(t, Bind(Values{"country": "FRA", "year": "1990"}, c, y))

	sql, args := y.Apply(c.Apply(sb)).Build()
	assert.Contains(t, sql, "c.iso_code = $1")
	assert.Contains(t, sql, "general_record.year = $2")
	assert.Equal(t, []interface{}{"FRA", 1990}, args)
}

func TestContinentSelector(t *testing.T) {
	err := Bind(Values{"continent": "Atlantis"}, NewContinentSelector(TemperatureTable))
	requireValidationFields(t, err, "continent")
	assert.Contains(t, err.Error(), "invalid entry")

	requireValidationFields(t, Bind(Values{}, NewContinentSelector(TemperatureTable)), "continent")

	s := NewContinentSelector(TemperatureTable)
	require.NoError(t, Bind(Values{"continent": "North America"}, s))
	sql, args := s.Apply(newSelect(TemperatureTable)).Build()
	assert.Contains(t, sql, "temperature_record.country = ?")
	assert.Equal(t, []interface{}{"North America"}, args)
}

func TestPeriodSelector(t *testing.T) {
	tests := []struct {
		name       string
		params     Values
		wantFields []string
		wantSQL    string
		wantArg    int
	}{
		{
			name:    "last five years",
			params:  Values{"period_type": PeriodLastMYears, "period_value": "5"},
			wantSQL: "temperature_record.year > ?",
			wantArg: 1994,
		},
		{
			name:    "specific year",
			params:  Values{"period_type": PeriodSpecificYear, "period_value": "1950"},
			wantSQL: "temperature_record.year = ?",
			wantArg: 1950,
		},
		{
			name:    "last m years may exceed the era",
			params:  Values{"period_type": PeriodLastMYears, "period_value": "500"},
			wantSQL: "temperature_record.year > ?",
			wantArg: 1499,
		},
		{
			name:       "last m years needs at least one",
			params:     Values{"period_type": PeriodLastMYears, "period_value": "0"},
			wantFields: []string{"period_value"},
		},
		{
			name:       "missing period type",
			params:     Values{"period_value": "5"},
			wantFields: []string{"period_type"},
		},
		{
			name:       "unknown period type",
			params:     Values{"period_type": "decade", "period_value": "5"},
			wantFields: []string{"period_type"},
		},
		{
			name:       "non numeric value",
			params:     Values{"period_type": PeriodLastMYears, "period_value": "five"},
			wantFields: []string{"period_value"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewPeriodSelector(TemperatureTable)
			err := Bind(tt.params, s)
			if tt.wantFields != nil {
				requireValidationFields(t, err, tt.wantFields...)
				return
			}
			require.NoError(t, err)
			sql, args := s.Apply(newSelect(TemperatureTable)).Build()
			assert.Contains(t, sql, tt.wantSQL)
			assert.Equal(t, []interface{}{tt.wantArg}, args)
		})
	}
}

func TestBatcher(t *testing.T) {
	for _, size := range []string{"0", "5", "15", "25", "99", "101", "1000"} {
		t.Run("rejects size "+size, func(t *testing.T) {
			requireValidationFields(t, Bind(Values{"batch_size": size, "batch_index": "1"}, NewBatcher()), "batch_size")
		})
	}

	requireValidationFields(t, Bind(Values{"batch_size": "10", "batch_index": "0"}, NewBatcher()), "batch_index")
	requireValidationFields(t, Bind(Values{"batch_size": "10"}, NewBatcher()), "batch_index")

	tests := []struct {
		size, index string
		wantOffset  int
	}{
		{"10", "1", 0},
		{"20", "3", 40},
		{"50", "2", 50},
		{"100", "5", 400},
	}
	for _, tt := range tests {
		t.Run(tt.size+"x"+tt.index, func(t *testing.T) {
			b := NewBatcher()
			require.NoError(t, Bind(Values{"batch_size": tt.size, "batch_index": tt.index}, b))
			assert.Equal(t, tt.wantOffset, b.Offset())
			sql, _ := b.Apply(newSelect(EnergyTable)).Build()
			assert.Contains(t, sql, "LIMIT")
			assert.Contains(t, sql, "OFFSET")
		})
	}
}

func TestPaging(t *testing.T) {
	pg := NewPaging()
	require.NoError(t, Bind(Values{}, pg))
	assert.Equal(t, DefaultLimit, pg.Limit)
	assert.Equal(t, 0, pg.Offset)

	pg = NewPaging()
	require.NoError(t, Bind(Values{"limit": "25", "offset": "50"}, pg))
	assert.Equal(t, 25, pg.Limit)
	assert.Equal(t, 50, pg.Offset)

	requireValidationFields(t, Bind(Values{"limit": "0"}, NewPaging()), "limit")
	requireValidationFields(t, Bind(Values{"limit": "101"}, NewPaging()), "limit")
	requireValidationFields(t, Bind(Values{"offset": "-1"}, NewPaging()), "offset")

	// Apply clamps even when validation was bypassed.
	sql, _ := (&Paging{Limit: 500, Offset: -3}).Apply(newSelect(GeneralTable)).Build()
	assert.Contains(t, sql, "LIMIT")
}

func TestEnergyPopulationOrder(t *testing.T) {
	requireValidationFields(t, Bind(Values{}, NewEnergyPopulationOrder()), "order_dir")
	requireValidationFields(t, Bind(Values{"order_dir": "desc"}, NewEnergyPopulationOrder()), "order_dir")

	o := NewEnergyPopulationOrder()
	require.NoError(t, Bind(Values{"order_dir": "DESC"}, o))
	sql, args := o.Apply(newSelect(EnergyTable)).Build()
	assert.Contains(t, sql, "ORDER BY (SELECT gr.population FROM general_record gr WHERE gr.country = energy_record.country AND gr.year = energy_record.year) DESC")
	assert.Empty(t, args)
}

func TestOrder(t *testing.T) {
	o := NewOrder(GeneralTable, "year", "gdp", "population")
	require.NoError(t, Bind(Values{}, o))
	sql, _ := o.Apply(newSelect(GeneralTable)).Build()
	assert.NotContains(t, sql, "ORDER BY")

	o = NewOrder(GeneralTable, "year", "gdp", "population")
	require.NoError(t, Bind(Values{"order_by": "gdp", "order_dir": "DESC"}, o))
	sql, _ = o.Apply(newSelect(GeneralTable)).Build()
	assert.Contains(t, sql, "ORDER BY general_record.gdp DESC")

	requireValidationFields(t, Bind(Values{"order_by": "country; DROP TABLE country"}, NewOrder(GeneralTable, "year")), "order_by")
	requireValidationFields(t, Bind(Values{"order_by": "year", "order_dir": "UP"}, NewOrder(GeneralTable, "year")), "order_dir")

	fixed := NewFixedOrder("total_temperature_change")
	require.NoError(t, Bind(Values{"order_by": "ignored"}, fixed))
	assert.Equal(t, Asc, fixed.Direction())
	sql, _ = fixed.Apply(newSelect(TemperatureTable)).Build()
	assert.Contains(t, sql, "ORDER BY total_temperature_change ASC")
}

func TestNumberSelectorAndTruncate(t *testing.T) {
	requireValidationFields(t, Bind(Values{}, NewNumberSelector()), "num_countries")
	requireValidationFields(t, Bind(Values{"num_countries": "0"}, NewNumberSelector()), "num_countries")

	n := NewNumberSelector()
	require.NoError(t, Bind(Values{"num_countries": "2"}, n))

	items := []string{"a", "b", "c"}
	assert.Equal(t, []string{"a", "b"}, Truncate(n, items))
	assert.Equal(t, []string{"a"}, Truncate(&NumberSelector{NumCountries: 1}, items))
	assert.Equal(t, items, Truncate(&NumberSelector{NumCountries: 10}, items))
	assert.Empty(t, Truncate(n, []string{}))
}

func TestBindStopsAtFirstFailure(t *testing.T) {
	batcher := NewBatcher()
	err := Bind(Values{"year": "1800", "batch_size": "7"}, NewYearSelector(EnergyTable), batcher)
	requireValidationFields(t, err, "year")
	assert.Equal(t, 0, batcher.BatchSize, "later primitives are not bound after a failure")
}

func TestComposedQueryOrder(t *testing.T) {
	year := NewYearSelector(EnergyTable)
	order := NewEnergyPopulationOrder()
	batch := NewBatcher()
	require.NoError(t, Bind(Values{"year": "1995", "order_dir": "ASC", "batch_size": "20", "batch_index": "3"}, year, order, batch))

	sb := newSelect(EnergyTable)
	for _, h := range []Helper{year, order, batch} {
		sb = h.Apply(sb)
	}
	sql, _ := sb.Build()

	where := strings.Index(sql, "WHERE")
	orderBy := strings.Index(sql, "ORDER BY")
	limit := strings.Index(sql, "LIMIT")
	require.True(t, where >= 0 && orderBy >= 0 && limit >= 0, sql)
	assert.Less(t, where, orderBy)
	assert.Less(t, orderBy, limit)
}
