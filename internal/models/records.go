package models

import (
	"strconv"
)

// Dataset era bounds. Every fact table row has FirstYear <= year <= LastYear.
const (
	FirstYear = 1900
	LastYear  = 1999
)

// CSVRecord is implemented by every API representation so responses can be rendered as CSV.
type CSVRecord interface {
	CSVHeader() []string
	CSVRow() []string
}

// GeneralRecord holds the economic indicators of a country for one year.
// NULL values represented as pointers: nil means "no data", never zero.
type GeneralRecord struct {
	Country    string `json:"country" db:"country"`
	Year       int    `json:"year" db:"year"`
	GDP        *int64 `json:"gdp" db:"gdp"`
	Population *int64 `json:"population" db:"population"`
}

func (r *GeneralRecord) CSVHeader() []string {
	return []string{"country", "year", "gdp", "population"}
}

func (r *GeneralRecord) CSVRow() []string {
	return []string{r.Country, strconv.Itoa(r.Year), formatInt(r.GDP), formatInt(r.Population)}
}

// EmissionRecord holds greenhouse gas emissions of a country for one year.
type EmissionRecord struct {
	Country      string   `json:"country" db:"country"`
	Year         int      `json:"year" db:"year"`
	CO2          *float64 `json:"co2" db:"co2"`
	Methane      *float64 `json:"methane" db:"methane"`
	NitrousOxide *float64 `json:"nitrous_oxide" db:"nitrous_oxide"`
	TotalGHG     *float64 `json:"total_ghg" db:"total_ghg"`
}

func (r *EmissionRecord) CSVHeader() []string {
	return []string{"country", "year", "co2", "methane", "nitrous_oxide", "total_ghg"}
}

func (r *EmissionRecord) CSVRow() []string {
	return []string{
		r.Country,
		strconv.Itoa(r.Year),
		formatFloat(r.CO2),
		formatFloat(r.Methane),
		formatFloat(r.NitrousOxide),
		formatFloat(r.TotalGHG),
	}
}

// EnergyRecord holds energy intensity figures of a country for one year.
type EnergyRecord struct {
	Country         string   `json:"country" db:"country"`
	Year            int      `json:"year" db:"year"`
	EnergyPerCapita *float64 `json:"energy_per_capita" db:"energy_per_capita"`
	EnergyPerGDP    *float64 `json:"energy_per_gdp" db:"energy_per_gdp"`
}

func (r *EnergyRecord) CSVHeader() []string {
	return []string{"country", "year", "energy_per_capita", "energy_per_gdp"}
}

func (r *EnergyRecord) CSVRow() []string {
	return []string{r.Country, strconv.Itoa(r.Year), formatFloat(r.EnergyPerCapita), formatFloat(r.EnergyPerGDP)}
}

// TemperatureRecord holds temperature change attribution for a country or continent.
// Country carries the continent name for continent rows.
type TemperatureRecord struct {
	Country                         string   `json:"country" db:"country"`
	Year                            int      `json:"year" db:"year"`
	ShareOfTemperatureChangeFromGHG *float64 `json:"share_of_temperature_change_from_ghg" db:"share_of_temperature_change_from_ghg"`
	TemperatureChangeFromCH4        *float64 `json:"temperature_change_from_ch4" db:"temperature_change_from_ch4"`
	TemperatureChangeFromCO2        *float64 `json:"temperature_change_from_co2" db:"temperature_change_from_co2"`
	TemperatureChangeFromGHG        *float64 `json:"temperature_change_from_ghg" db:"temperature_change_from_ghg"`
	TemperatureChangeFromN2O        *float64 `json:"temperature_change_from_n2o" db:"temperature_change_from_n2o"`
}

func (r *TemperatureRecord) CSVHeader() []string {
	return []string{
		"country",
		"year",
		"share_of_temperature_change_from_ghg",
		"temperature_change_from_ch4",
		"temperature_change_from_co2",
		"temperature_change_from_ghg",
		"temperature_change_from_n2o",
	}
}

func (r *TemperatureRecord) CSVRow() []string {
	return []string{
		r.Country,
		strconv.Itoa(r.Year),
		formatFloat(r.ShareOfTemperatureChangeFromGHG),
		formatFloat(r.TemperatureChangeFromCH4),
		formatFloat(r.TemperatureChangeFromCO2),
		formatFloat(r.TemperatureChangeFromGHG),
		formatFloat(r.TemperatureChangeFromN2O),
	}
}

// Country maps a canonical country name to its ISO-3166 alpha-3 code.
type Country struct {
	Country string `json:"country" db:"country"`
	ISOCode string `json:"iso_code" db:"iso_code"`
}

// Continent marks a continent label as present in the dataset.
type Continent struct {
	Continent string `json:"continent" db:"continent"`
}

// TemperatureShare is one group of the countries aggregate query.
// ActualCountry is NULL when the label is not in the country table (continents, regions).
type TemperatureShare struct {
	Label         string   `db:"country"`
	Total         *float64 `db:"total_temperature_change"`
	ActualCountry *string  `db:"actual_country"`
}

// CountryRanking is the API representation of a country ranked by temperature change share.
type CountryRanking struct {
	Name                            string   `json:"name"`
	ShareOfTemperatureChangeFromGHG *float64 `json:"share_of_temperature_change_from_ghg"`
}

func (r *CountryRanking) CSVHeader() []string {
	return []string{"name", "share_of_temperature_change_from_ghg"}
}

func (r *CountryRanking) CSVRow() []string {
	return []string{r.Name, formatFloat(r.ShareOfTemperatureChangeFromGHG)}
}

// Message is a plain informational response body.
type Message struct {
	Message string `json:"message"`
}

func (m *Message) CSVHeader() []string {
	return []string{"message"}
}

func (m *Message) CSVRow() []string {
	return []string{m.Message}
}

// GeneralRecordInput is the body of a create request.
type GeneralRecordInput struct {
	Country    string `json:"country" validate:"required"`
	Year       int    `json:"year" validate:"required,min=1900,max=1999"`
	ISOCode    string `json:"iso_code,omitempty" validate:"omitempty,iso3166_1_alpha3"`
	GDP        *int64 `json:"gdp"`
	Population *int64 `json:"population" validate:"omitempty,min=0"`
}

// GeneralRecordUpdate is the body of an update request. Absent fields are stored as NULL.
type GeneralRecordUpdate struct {
	GDP        *int64 `json:"gdp"`
	Population *int64 `json:"population" validate:"omitempty,min=0"`
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
