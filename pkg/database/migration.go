package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"climate-records/migrations"
	"climate-records/pkg/logging"
)

// migrationLogger adapts StructuredLogger to migrate.Logger
type migrationLogger struct {
	logger *logging.StructuredLogger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Debug(context.Background(), "[MIGRATE] "+fmt.Sprintf(format, v...), nil)
}

func (l migrationLogger) Verbose() bool {
	return false
}

// MigrationService applies the embedded schema migrations
type MigrationService struct {
	cfg    *Config
	logger *logging.StructuredLogger
}

// NewMigrationService creates a migration service for the given connection settings
func NewMigrationService(cfg *Config, logger *logging.StructuredLogger) *MigrationService {
	return &MigrationService{cfg: cfg, logger: logger}
}

// Up applies every pending migration
func (ms *MigrationService) Up() error {
	return ms.run("up", func(m *migrate.Migrate) error { return m.Up() })
}

// Down rolls back every applied migration
func (ms *MigrationService) Down() error {
	return ms.run("down", func(m *migrate.Migrate) error { return m.Down() })
}

// To migrates up or down to an exact version
func (ms *MigrationService) To(version uint) error {
	return ms.run(fmt.Sprintf("to_%d", version), func(m *migrate.Migrate) error { return m.Migrate(version) })
}

// Force marks the schema as being at version without running anything, clearing a dirty flag
func (ms *MigrationService) Force(version int) error {
	return ms.run("force", func(m *migrate.Migrate) error { return m.Force(version) })
}

// Version reports the current schema version and dirty flag
func (ms *MigrationService) Version() (version uint, dirty bool, err error) {
	err = ms.run("version", func(m *migrate.Migrate) error {
		var vErr error
		version, dirty, vErr = m.Version()
		if errors.Is(vErr, migrate.ErrNilVersion) {
			return nil
		}
		return vErr
	})
	return version, dirty, err
}

// run opens a dedicated connection so the migrate driver can close it without touching the
// application pool.
func (ms *MigrationService) run(op string, fn func(m *migrate.Migrate) error) error {
	ctx := context.Background()
	start := time.Now()

	conn, err := sql.Open(ms.cfg.Driver, ms.cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	var driver migratedb.Driver
	switch ms.cfg.Driver {
	case DriverPostgres:
		driver, err = migratepg.WithInstance(conn, &migratepg.Config{})
	case DriverSQLite:
		driver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database driver %q", ms.cfg.Driver)
	}
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, ms.cfg.Driver, driver)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrationLogger{logger: ms.logger}
	defer m.Close()

	err = fn(m)
	if errors.Is(err, migrate.ErrNoChange) {
		ms.logger.Info(ctx, "[MIGRATE] No new migrations to apply", logging.Fields{"op": op})
		return nil
	}
	if err != nil {
		ms.logger.Error(ctx, "[MIGRATE] Migration failed", logging.Fields{"op": op}, err)
		return fmt.Errorf("migration %s failed: %w", op, err)
	}

	ms.logger.Info(ctx, "[MIGRATE] Migrations completed", logging.Fields{
		"op":          op,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
