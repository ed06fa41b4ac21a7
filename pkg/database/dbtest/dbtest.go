// Package dbtest opens a migrated SQLite database for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"climate-records/internal/models"
	"climate-records/pkg/database"
	"climate-records/pkg/logging"
	"climate-records/pkg/metrics"
)

// Env bundles what a test needs to build repositories and services.
type Env struct {
	DB       *database.DB
	Logger   *logging.StructuredLogger
	Metrics  *metrics.Collector
	Registry *prometheus.Registry
}

// New creates a file-backed SQLite database in a temp dir, applies the embedded migrations
// and closes it when the test ends.
func New(t testing.TB) *Env {
	t.Helper()

	cfg := &database.Config{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "records.db") + "?_busy_timeout=5000",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}
	logger := logging.NewNopLogger()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollectorWithRegistry("climate_records_test", reg)

	require.NoError(t, database.NewMigrationService(cfg, logger).Up())

	db, err := database.Open(cfg, logger, collector)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &Env{DB: db, Logger: logger, Metrics: collector, Registry: reg}
}

func Int(v int64) *int64 { return &v }

func Float(v float64) *float64 { return &v }

// Fixture is a small dataset covering countries, a country without population and
// continent temperature rows.
func Fixture() []*models.FullRecord {
	return []*models.FullRecord{
		{Country: "France", ISOCode: "FRA", Year: 1990, GDP: Int(1_000_000_000_000), Population: Int(56_000_000),
			CO2: Float(400), ShareOfTemperatureChangeFromGHG: Float(1.0), EnergyPerCapita: Float(44000)},
		{Country: "France", ISOCode: "FRA", Year: 1991, Population: Int(57_000_000),
			CO2: Float(410), ShareOfTemperatureChangeFromGHG: Float(1.1)},
		{Country: "France", ISOCode: "FRA", Year: 1995, GDP: Int(1_300_000_000_000), Population: Int(58_000_000),
			CO2: Float(380), Methane: Float(70), ShareOfTemperatureChangeFromGHG: Float(1.2), EnergyPerCapita: Float(45000)},
		{Country: "Chad", ISOCode: "TCD", Year: 1995, Population: Int(7_000_000),
			CO2: Float(0.1), ShareOfTemperatureChangeFromGHG: Float(0.01), EnergyPerCapita: Float(300)},
		{Country: "Germany", ISOCode: "DEU", Year: 1995,
			CO2: Float(900), ShareOfTemperatureChangeFromGHG: Float(2.0), EnergyPerCapita: Float(50000)},
		{Country: "Europe", Year: 1990, ShareOfTemperatureChangeFromGHG: Float(9.0)},
		{Country: "Europe", Year: 1995, ShareOfTemperatureChangeFromGHG: Float(9.5), TemperatureChangeFromCO2: Float(0.2)},
		{Country: "Asia", Year: 1995, ShareOfTemperatureChangeFromGHG: Float(20)},
	}
}
