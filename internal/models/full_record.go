package models

import (
	"math"
	"strconv"
	"strings"
)

// FullRecordColumns are the CSV columns kept from the bulk ingest source; every other column is dropped.
var FullRecordColumns = []string{
	"country",
	"year",
	"iso_code",
	"population",
	"gdp",
	"co2",
	"energy_per_capita",
	"energy_per_gdp",
	"methane",
	"nitrous_oxide",
	"share_of_temperature_change_from_ghg",
	"temperature_change_from_ch4",
	"temperature_change_from_co2",
	"temperature_change_from_ghg",
	"temperature_change_from_n2o",
	"total_ghg",
}

// RawRecord is one CSV row of the bulk ingest source keyed by column name.
type RawRecord map[string]string

// FullRecord is one parsed CSV row carrying the values of every fact table.
type FullRecord struct {
	Country    string `validate:"required"`
	Year       int    `validate:"min=1900,max=1999"`
	ISOCode    string `validate:"omitempty,iso3166_1_alpha3"`
	GDP        *int64
	Population *int64 `validate:"omitempty,min=0"`

	CO2          *float64
	Methane      *float64
	NitrousOxide *float64
	TotalGHG     *float64

	ShareOfTemperatureChangeFromGHG *float64
	TemperatureChangeFromCH4        *float64
	TemperatureChangeFromCO2        *float64
	TemperatureChangeFromGHG        *float64
	TemperatureChangeFromN2O        *float64

	EnergyPerCapita *float64
	EnergyPerGDP    *float64
}

// InEra reports whether the raw row's year lies in the dataset era. Unparsable years are out.
func (r RawRecord) InEra() bool {
	year, err := strconv.Atoi(strings.TrimSpace(r["year"]))
	if err != nil {
		return false
	}
	return year >= FirstYear && year <= LastYear
}

// Keep reports whether the row belongs to a country (has an ISO code) or a continent.
// OWID_* codes mark aggregate regions (World, income groups) and are dropped.
func (r RawRecord) Keep() bool {
	if !r.InEra() {
		return false
	}
	iso := strings.TrimSpace(r["iso_code"])
	if iso != "" && !strings.HasPrefix(iso, "OWID_") {
		return true
	}
	return IsContinent(strings.TrimSpace(r["country"]))
}

// ToFullRecord parses the raw strings. Empty cells become nil; malformed numbers are
// reported as ValidationErrors listing every bad column.
func (r RawRecord) ToFullRecord() (*FullRecord, error) {
	var errs ValidationErrors
	fr := &FullRecord{
		Country: strings.TrimSpace(r["country"]),
		ISOCode: strings.TrimSpace(r["iso_code"]),
	}

	year, err := strconv.Atoi(strings.TrimSpace(r["year"]))
	if err != nil {
		errs = append(errs, &ValidationError{Field: "year", Value: r["year"], Message: "year must be an integer"})
	}
	fr.Year = year

	intCol := func(col string) *int64 {
		v, err := parseWholeNumber(r[col])
		if err != nil {
			errs = append(errs, &ValidationError{Field: col, Value: r[col], Message: col + " must be an integer"})
		}
		return v
	}
	floatCol := func(col string) *float64 {
		v, err := parseOptionalFloat(r[col])
		if err != nil {
			errs = append(errs, &ValidationError{Field: col, Value: r[col], Message: col + " must be a number"})
		}
		return v
	}

	fr.GDP = intCol("gdp")
	fr.Population = intCol("population")
	fr.CO2 = floatCol("co2")
	fr.Methane = floatCol("methane")
	fr.NitrousOxide = floatCol("nitrous_oxide")
	fr.TotalGHG = floatCol("total_ghg")
	fr.ShareOfTemperatureChangeFromGHG = floatCol("share_of_temperature_change_from_ghg")
	fr.TemperatureChangeFromCH4 = floatCol("temperature_change_from_ch4")
	fr.TemperatureChangeFromCO2 = floatCol("temperature_change_from_co2")
	fr.TemperatureChangeFromGHG = floatCol("temperature_change_from_ghg")
	fr.TemperatureChangeFromN2O = floatCol("temperature_change_from_n2o")
	fr.EnergyPerCapita = floatCol("energy_per_capita")
	fr.EnergyPerGDP = floatCol("energy_per_gdp")

	if len(errs) > 0 {
		return nil, errs
	}
	return fr, nil
}

func (f *FullRecord) HasISOCode() bool {
	return f.ISOCode != ""
}

func (f *FullRecord) IsContinent() bool {
	return IsContinent(f.Country)
}

func (f *FullRecord) ToGeneralRecord() *GeneralRecord {
	return &GeneralRecord{
		Country:    f.Country,
		Year:       f.Year,
		GDP:        f.GDP,
		Population: f.Population,
	}
}

func (f *FullRecord) ToEmissionRecord() *EmissionRecord {
	return &EmissionRecord{
		Country:      f.Country,
		Year:         f.Year,
		CO2:          f.CO2,
		Methane:      f.Methane,
		NitrousOxide: f.NitrousOxide,
		TotalGHG:     f.TotalGHG,
	}
}

func (f *FullRecord) ToEnergyRecord() *EnergyRecord {
	return &EnergyRecord{
		Country:         f.Country,
		Year:            f.Year,
		EnergyPerCapita: f.EnergyPerCapita,
		EnergyPerGDP:    f.EnergyPerGDP,
	}
}

func (f *FullRecord) ToTemperatureRecord() *TemperatureRecord {
	return &TemperatureRecord{
		Country:                         f.Country,
		Year:                            f.Year,
		ShareOfTemperatureChangeFromGHG: f.ShareOfTemperatureChangeFromGHG,
		TemperatureChangeFromCH4:        f.TemperatureChangeFromCH4,
		TemperatureChangeFromCO2:        f.TemperatureChangeFromCO2,
		TemperatureChangeFromGHG:        f.TemperatureChangeFromGHG,
		TemperatureChangeFromN2O:        f.TemperatureChangeFromN2O,
	}
}

func (f *FullRecord) ToCountry() *Country {
	return &Country{Country: f.Country, ISOCode: f.ISOCode}
}

func (f *FullRecord) ToContinent() *Continent {
	return &Continent{Continent: f.Country}
}

// parseWholeNumber accepts "123", "123.0" and "1.23e11"; fractions are truncated.
func parseWholeNumber(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64 {
		return nil, strconv.ErrSyntax
	}
	v := int64(f)
	return &v, nil
}

func parseOptionalFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, strconv.ErrSyntax
	}
	return &f, nil
}
