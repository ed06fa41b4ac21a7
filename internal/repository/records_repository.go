package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"climate-records/internal/models"
	"climate-records/internal/query"
	"climate-records/pkg/database"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// RecordRepository provides data access for the fact and reference tables.
// Read methods take query helpers and apply them in the order given.
type RecordRepository interface {
	// Existence guard
	ResolveCountries(ctx context.Context, sel *query.CountrySelector) ([]string, error)

	// General records
	CountGeneral(ctx context.Context, helpers ...query.Helper) (int, error)
	FindGeneral(ctx context.Context, helpers ...query.Helper) ([]*models.GeneralRecord, error)
	FindOneGeneral(ctx context.Context, helpers ...query.Helper) (*models.GeneralRecord, error)
	CreateGeneral(ctx context.Context, rec *models.GeneralRecord) error
	UpdateGeneral(ctx context.Context, rec *models.GeneralRecord) error
	DeleteGeneral(ctx context.Context, country string, year int) error

	// Other fact tables
	FindEmissions(ctx context.Context, helpers ...query.Helper) ([]*models.EmissionRecord, error)
	FindEnergy(ctx context.Context, helpers ...query.Helper) ([]*models.EnergyRecord, error)
	FindTemperatures(ctx context.Context, helpers ...query.Helper) ([]*models.TemperatureRecord, error)

	// Aggregates
	RankTemperatureShares(ctx context.Context, helpers ...query.Helper) ([]*models.TemperatureShare, error)

	// Bulk ingest
	SaveFullRecord(ctx context.Context, rec *models.FullRecord) error

	HealthCheck(ctx context.Context) error
}

var (
	generalColumns     = []string{"country", "year", "gdp", "population"}
	emissionColumns    = []string{"country", "year", "co2", "methane", "nitrous_oxide", "total_ghg"}
	energyColumns      = []string{"country", "year", "energy_per_capita", "energy_per_gdp"}
	temperatureColumns = []string{
		"country",
		"year",
		"share_of_temperature_change_from_ghg",
		"temperature_change_from_ch4",
		"temperature_change_from_co2",
		"temperature_change_from_ghg",
		"temperature_change_from_n2o",
	}
)

// recordRepository implements RecordRepository
type recordRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RecordRepository {
	return &recordRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// selectFrom starts a select of the given columns, qualified and aliased back to their bare names.
func (r *recordRepository) selectFrom(t query.Table, columns []string) *sqlbuilder.SelectBuilder {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = t.Col(c) + " AS " + c
	}
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(cols...).From(string(t))
	return sb
}

func apply(sb *sqlbuilder.SelectBuilder, helpers []query.Helper) *sqlbuilder.SelectBuilder {
	for _, h := range helpers {
		sb = h.Apply(sb)
	}
	return sb
}

// ResolveCountries returns the canonical names matching a country selector. A name resolves to
// itself when present; an ISO code resolves to every country carrying it.
func (r *recordRepository) ResolveCountries(ctx context.Context, sel *query.CountrySelector) ([]string, error) {
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(query.CountryTable.Col("country")).From(string(query.CountryTable))
	q, args := sel.Apply(sb).Build()

	var names []string
	if err := r.db.SelectContext(ctx, "resolve_countries", &names, q, args...); err != nil {
		return nil, fmt.Errorf("failed to resolve country: %w", err)
	}
	return names, nil
}

// CountGeneral counts general records matching the helpers
func (r *recordRepository) CountGeneral(ctx context.Context, helpers ...query.Helper) (int, error) {
	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select("COUNT(*)").From(string(query.GeneralTable))
	q, args := apply(sb, helpers).Build()

	var count int
	if err := r.db.GetContext(ctx, "count_general", &count, q, args...); err != nil {
		return 0, fmt.Errorf("failed to count general records: %w", err)
	}
	return count, nil
}

// FindGeneral lists general records matching the helpers
func (r *recordRepository) FindGeneral(ctx context.Context, helpers ...query.Helper) ([]*models.GeneralRecord, error) {
	q, args := apply(r.selectFrom(query.GeneralTable, generalColumns), helpers).Build()

	records := []*models.GeneralRecord{}
	if err := r.db.SelectContext(ctx, "find_general", &records, q, args...); err != nil {
		return nil, fmt.Errorf("failed to find general records: %w", err)
	}
	return records, nil
}

// FindOneGeneral returns the first general record matching the helpers or a NotFoundError
func (r *recordRepository) FindOneGeneral(ctx context.Context, helpers ...query.Helper) (*models.GeneralRecord, error) {
	sb := apply(r.selectFrom(query.GeneralTable, generalColumns), helpers)
	sb.Limit(1)
	q, args := sb.Build()

	var rec models.GeneralRecord
	err := r.db.GetContext(ctx, "find_one_general", &rec, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "general record"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get general record: %w", err)
	}
	return &rec, nil
}

// CreateGeneral inserts a general record. A duplicate key is reported as ConflictError.
func (r *recordRepository) CreateGeneral(ctx context.Context, rec *models.GeneralRecord) error {
	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(string(query.GeneralTable)).
		Cols(generalColumns...).
		Values(rec.Country, rec.Year, rec.GDP, rec.Population)
	q, args := ib.Build()

	if _, err := r.db.ExecContext(ctx, "insert_general", q, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return &models.ConflictError{Resource: "general record", ID: recordKey(rec.Country, rec.Year)}
		}
		return fmt.Errorf("failed to create general record: %w", err)
	}

	r.metrics.RecordMutation(string(query.GeneralTable), "create")
	r.logger.Debug(ctx, "[REPO_CREATE_GENERAL] General record created", logging.Fields{
		"country": rec.Country,
		"year":    rec.Year,
	})
	return nil
}

// UpdateGeneral overwrites gdp and population of an existing general record
func (r *recordRepository) UpdateGeneral(ctx context.Context, rec *models.GeneralRecord) error {
	ub := r.db.Flavor().NewUpdateBuilder()
	ub.Update(string(query.GeneralTable)).
		Set(
			ub.Assign("gdp", rec.GDP),
			ub.Assign("population", rec.Population),
		).
		Where(
			ub.Equal("country", rec.Country),
			ub.Equal("year", rec.Year),
		)
	q, args := ub.Build()

	result, err := r.db.ExecContext(ctx, "update_general", q, args...)
	if err != nil {
		return fmt.Errorf("failed to update general record: %w", err)
	}
	if err := requireAffected(result, recordKey(rec.Country, rec.Year)); err != nil {
		return err
	}

	r.metrics.RecordMutation(string(query.GeneralTable), "update")
	return nil
}

// DeleteGeneral removes one general record by key
func (r *recordRepository) DeleteGeneral(ctx context.Context, country string, year int) error {
	dlb := r.db.Flavor().NewDeleteBuilder()
	dlb.DeleteFrom(string(query.GeneralTable)).
		Where(
			dlb.Equal("country", country),
			dlb.Equal("year", year),
		)
	q, args := dlb.Build()

	result, err := r.db.ExecContext(ctx, "delete_general", q, args...)
	if err != nil {
		return fmt.Errorf("failed to delete general record: %w", err)
	}
	if err := requireAffected(result, recordKey(country, year)); err != nil {
		return err
	}

	r.metrics.RecordMutation(string(query.GeneralTable), "delete")
	r.logger.Debug(ctx, "[REPO_DELETE_GENERAL] General record deleted", logging.Fields{
		"country": country,
		"year":    year,
	})
	return nil
}

// FindEmissions lists emission records matching the helpers
func (r *recordRepository) FindEmissions(ctx context.Context, helpers ...query.Helper) ([]*models.EmissionRecord, error) {
	q, args := apply(r.selectFrom(query.EmissionTable, emissionColumns), helpers).Build()

	records := []*models.EmissionRecord{}
	if err := r.db.SelectContext(ctx, "find_emissions", &records, q, args...); err != nil {
		return nil, fmt.Errorf("failed to find emission records: %w", err)
	}
	return records, nil
}

// FindEnergy lists energy records matching the helpers
func (r *recordRepository) FindEnergy(ctx context.Context, helpers ...query.Helper) ([]*models.EnergyRecord, error) {
	q, args := apply(r.selectFrom(query.EnergyTable, energyColumns), helpers).Build()

	records := []*models.EnergyRecord{}
	if err := r.db.SelectContext(ctx, "find_energy", &records, q, args...); err != nil {
		return nil, fmt.Errorf("failed to find energy records: %w", err)
	}
	return records, nil
}

// FindTemperatures lists temperature records matching the helpers
func (r *recordRepository) FindTemperatures(ctx context.Context, helpers ...query.Helper) ([]*models.TemperatureRecord, error) {
	q, args := apply(r.selectFrom(query.TemperatureTable, temperatureColumns), helpers).Build()

	records := []*models.TemperatureRecord{}
	if err := r.db.SelectContext(ctx, "find_temperatures", &records, q, args...); err != nil {
		return nil, fmt.Errorf("failed to find temperature records: %w", err)
	}
	return records, nil
}

// RankTemperatureShares sums the temperature change share per label. Labels that are not in
// the country table come back with a NULL ActualCountry.
func (r *recordRepository) RankTemperatureShares(ctx context.Context, helpers ...query.Helper) ([]*models.TemperatureShare, error) {
	label := query.TemperatureTable.Col("country")

	actual := sqlbuilder.NewSelectBuilder()
	actual.Select("c.country").From("country c").Where("c.country = " + label)
	actualSQL, _ := actual.Build()

	sb := r.db.Flavor().NewSelectBuilder()
	sb.Select(
		label+" AS country",
		"SUM("+query.TemperatureTable.Col("share_of_temperature_change_from_ghg")+") AS total_temperature_change",
		"("+actualSQL+") AS actual_country",
	).From(string(query.TemperatureTable))

	sb.GroupBy(label)
	q, args := apply(sb, helpers).Build()

	shares := []*models.TemperatureShare{}
	if err := r.db.SelectContext(ctx, "rank_temperature_shares", &shares, q, args...); err != nil {
		return nil, fmt.Errorf("failed to rank temperature shares: %w", err)
	}
	return shares, nil
}

// SaveFullRecord upserts one ingested row. Country rows fill every fact table and the
// country reference; continent rows only carry temperature data.
func (r *recordRepository) SaveFullRecord(ctx context.Context, rec *models.FullRecord) error {
	var stmts []statement
	switch {
	case rec.HasISOCode():
		g, e, en, t, c := rec.ToGeneralRecord(), rec.ToEmissionRecord(), rec.ToEnergyRecord(), rec.ToTemperatureRecord(), rec.ToCountry()
		stmts = []statement{
			r.upsert(query.CountryTable, []string{"country", "iso_code"}, []string{"country"},
				c.Country, c.ISOCode),
			r.upsert(query.GeneralTable, generalColumns, []string{"country", "year"},
				g.Country, g.Year, g.GDP, g.Population),
			r.upsert(query.EmissionTable, emissionColumns, []string{"country", "year"},
				e.Country, e.Year, e.CO2, e.Methane, e.NitrousOxide, e.TotalGHG),
			r.upsert(query.EnergyTable, energyColumns, []string{"country", "year"},
				en.Country, en.Year, en.EnergyPerCapita, en.EnergyPerGDP),
			r.upsert(query.TemperatureTable, temperatureColumns, []string{"country", "year"},
				t.Country, t.Year, t.ShareOfTemperatureChangeFromGHG, t.TemperatureChangeFromCH4,
				t.TemperatureChangeFromCO2, t.TemperatureChangeFromGHG, t.TemperatureChangeFromN2O),
		}
	case rec.IsContinent():
		t, c := rec.ToTemperatureRecord(), rec.ToContinent()
		stmts = []statement{
			r.upsert(query.ContinentTable, []string{"continent"}, []string{"continent"}, c.Continent),
			r.upsert(query.TemperatureTable, temperatureColumns, []string{"country", "year"},
				t.Country, t.Year, t.ShareOfTemperatureChangeFromGHG, t.TemperatureChangeFromCH4,
				t.TemperatureChangeFromCO2, t.TemperatureChangeFromGHG, t.TemperatureChangeFromN2O),
		}
	default:
		return &models.InvalidReferenceError{Kind: "country", Value: rec.Country}
	}

	return r.db.WithTx(ctx, "save_full_record", func(tx *sqlx.Tx) error {
		for _, st := range stmts {
			if _, err := tx.ExecContext(ctx, st.sql, st.args...); err != nil {
				return fmt.Errorf("failed to save %s: %w", st.table, err)
			}
		}
		return nil
	})
}

type statement struct {
	table query.Table
	sql   string
	args  []interface{}
}

// upsert inserts one row and overwrites every non-key column on a key conflict.
func (r *recordRepository) upsert(t query.Table, columns, key []string, values ...interface{}) statement {
	ib := r.db.Flavor().NewInsertBuilder()
	ib.InsertInto(string(t)).Cols(columns...).Values(values...)

	keys := make(map[string]bool, len(key))
	for _, k := range key {
		keys[k] = true
	}
	var sets []string
	for _, c := range columns {
		if !keys[c] {
			sets = append(sets, c+" = EXCLUDED."+c)
		}
	}

	conflict := "ON CONFLICT (" + strings.Join(key, ", ") + ") DO NOTHING"
	if len(sets) > 0 {
		conflict = "ON CONFLICT (" + strings.Join(key, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}
	ib.SQL(conflict)

	q, args := ib.Build()
	return statement{table: t, sql: q, args: args}
}

// HealthCheck performs a repository health check
func (r *recordRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

func requireAffected(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &models.NotFoundError{Resource: "general record", ID: id}
	}
	return nil
}

func recordKey(country string, year int) string {
	return country + "/" + strconv.Itoa(year)
}
