package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawRecord_ToFullRecord(t *testing.T) {
	tests := []struct {
		name        string
		raw         RawRecord
		wantFields  []string
		checkValues func(*testing.T, *FullRecord)
	}{
		{
			name: "country row with all values",
			raw: RawRecord{
				"country": "France", "year": "1990", "iso_code": "FRA",
				"gdp": "1.2e12", "population": "56666000",
				"co2": "399.4", "methane": "70.1", "nitrous_oxide": "41.2", "total_ghg": "510.7",
				"share_of_temperature_change_from_ghg": "1.32",
				"temperature_change_from_ch4": "0.01", "temperature_change_from_co2": "0.02",
				"temperature_change_from_ghg": "0.03", "temperature_change_from_n2o": "0.004",
				"energy_per_capita": "44000.5", "energy_per_gdp": "1.9",
			},
			checkValues: func(t *testing.T, fr *FullRecord) {
				assert.Equal(t, "France", fr.Country)
				assert.Equal(t, 1990, fr.Year)
				assert.True(t, fr.HasISOCode())
				require.NotNil(t, fr.GDP)
				assert.Equal(t, int64(1200000000000), *fr.GDP)
				require.NotNil(t, fr.Population)
				assert.Equal(t, int64(56666000), *fr.Population)
				require.NotNil(t, fr.CO2)
				assert.Equal(t, 399.4, *fr.CO2)
				require.NotNil(t, fr.TemperatureChangeFromN2O)
				assert.Equal(t, 0.004, *fr.TemperatureChangeFromN2O)
			},
		},
		{
			name: "empty cells stay null, zero stays zero",
			raw: RawRecord{
				"country": "Chad", "year": "1950", "iso_code": "TCD",
				"gdp": "", "population": "0", "co2": "0", "methane": "",
			},
			checkValues: func(t *testing.T, fr *FullRecord) {
				assert.Nil(t, fr.GDP)
				require.NotNil(t, fr.Population)
				assert.Equal(t, int64(0), *fr.Population)
				require.NotNil(t, fr.CO2)
				assert.Equal(t, 0.0, *fr.CO2)
				assert.Nil(t, fr.Methane)
				assert.Nil(t, fr.EnergyPerGDP)
			},
		},
		{
			name: "continent row without iso code",
			raw:  RawRecord{"country": "Europe", "year": "1999", "share_of_temperature_change_from_ghg": "9.5"},
			checkValues: func(t *testing.T, fr *FullRecord) {
				assert.False(t, fr.HasISOCode())
				assert.True(t, fr.IsContinent())
				temp := fr.ToTemperatureRecord()
				assert.Equal(t, "Europe", temp.Country)
				require.NotNil(t, temp.ShareOfTemperatureChangeFromGHG)
				assert.Equal(t, 9.5, *temp.ShareOfTemperatureChangeFromGHG)
				assert.Equal(t, "Europe", fr.ToContinent().Continent)
			},
		},
		{
			name:       "malformed numbers list every bad column",
			raw:        RawRecord{"country": "France", "year": "19x0", "gdp": "lots", "co2": "n/a"},
			wantFields: []string{"year", "gdp", "co2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr, err := tt.raw.ToFullRecord()
			if tt.wantFields != nil {
				require.Error(t, err)
				var ve ValidationErrors
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.wantFields, ve.Fields())
				assert.False(t, ve.IsTransient())
				return
			}
			require.NoError(t, err)
			tt.checkValues(t, fr)
		})
	}
}

func TestRawRecord_Keep(t *testing.T) {
	tests := []struct {
		name string
		raw  RawRecord
		want bool
	}{
		{"country in era", RawRecord{"country": "France", "year": "1990", "iso_code": "FRA"}, true},
		{"first year", RawRecord{"country": "France", "year": "1900", "iso_code": "FRA"}, true},
		{"before era", RawRecord{"country": "France", "year": "1899", "iso_code": "FRA"}, false},
		{"after era", RawRecord{"country": "France", "year": "2000", "iso_code": "FRA"}, false},
		{"continent", RawRecord{"country": "Asia", "year": "1950", "iso_code": ""}, true},
		{"region without code", RawRecord{"country": "High-income countries", "year": "1950"}, false},
		{"aggregate code", RawRecord{"country": "World", "year": "1950", "iso_code": "OWID_WRL"}, false},
		{"unparsable year", RawRecord{"country": "France", "year": "", "iso_code": "FRA"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.raw.Keep())
		})
	}
}

func TestIsContinent(t *testing.T) {
	for _, c := range Continents {
		assert.True(t, IsContinent(c), c)
	}
	assert.False(t, IsContinent("Atlantis"))
	assert.False(t, IsContinent("europe"))
	assert.False(t, IsContinent(""))
}

func TestCSVRowsRenderNullAsEmpty(t *testing.T) {
	gdp := int64(0)
	g := &GeneralRecord{Country: "France", Year: 1990, GDP: &gdp}
	assert.Equal(t, []string{"country", "year", "gdp", "population"}, g.CSVHeader())
	assert.Equal(t, []string{"France", "1990", "0", ""}, g.CSVRow())

	co2 := 1.5
	e := &EmissionRecord{Country: "France", Year: 1991, CO2: &co2}
	assert.Equal(t, []string{"France", "1991", "1.5", "", "", ""}, e.CSVRow())
	assert.Len(t, e.CSVHeader(), len(e.CSVRow()))

	temp := &TemperatureRecord{Country: "Asia", Year: 1950}
	assert.Len(t, temp.CSVHeader(), len(temp.CSVRow()))

	energy := &EnergyRecord{Country: "Chad", Year: 1995}
	assert.Equal(t, []string{"Chad", "1995", "", ""}, energy.CSVRow())

	share := 2.25
	r := &CountryRanking{Name: "France", ShareOfTemperatureChangeFromGHG: &share}
	assert.Equal(t, []string{"France", "2.25"}, r.CSVRow())

	m := &Message{Message: "ok"}
	assert.Equal(t, []string{"message"}, m.CSVHeader())
	assert.Equal(t, []string{"ok"}, m.CSVRow())
}

func TestErrorTypes(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		message   string
		transient bool
	}{
		{"validation", &ValidationError{Field: "year", Message: "year must be at least 1900"}, "year must be at least 1900", false},
		{"validation list", ValidationErrors{{Field: "a", Message: "a bad"}, {Field: "b", Message: "b bad"}}, "a bad; b bad", false},
		{"not found", &NotFoundError{Resource: "general record", ID: "France/1990"}, "general record not found: France/1990", false},
		{"country not found", &CountryNotFoundError{Country: "Atlantis"}, "country not found: Atlantis", false},
		{"conflict", &ConflictError{Resource: "general record", ID: "France/1990"}, "general record already exists: France/1990", false},
		{"invalid reference", &InvalidReferenceError{Kind: "continent", Value: "Atlantis"}, "invalid continent reference: Atlantis", false},
		{"upstream status", &UpstreamFetchError{URL: "http://x", StatusCode: 503}, "fetch http://x: unexpected status 503", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			type transient interface{ IsTransient() bool }
			tr, ok := tt.err.(transient)
			require.True(t, ok)
			assert.Equal(t, tt.transient, tr.IsTransient())
		})
	}

	inner := errors.New("broken pipe")
	se := &SerializationError{Format: "csv", Err: inner}
	assert.ErrorIs(t, se, inner)
	row := &IngestRowError{Row: 3, Err: &NotFoundError{Resource: "x", ID: "y"}}
	var nf *NotFoundError
	assert.True(t, errors.As(row, &nf))
	assert.Equal(t, "row 3: x not found: y", row.Error())
}
