// Package migrate provides database migration management.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	appConfig "github.com/festy23/patch_integrator/internal/config"
	"github.com/festy23/patch_integrator/internal/database/config"
)

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var embedded embed.FS

// GetMigrationsPath returns the directory that overrides the embedded
// migrations, or an empty string when the embedded set is used.
func GetMigrationsPath() string {
	return appConfig.GetEnv("MIGRATIONS_PATH", "")
}

// Migrate applies all pending migrations for the given driver.
func Migrate(ctx context.Context, db *gorm.DB, driver config.Driver) error {
	m, release, err := newMigrator(ctx, db, driver)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// Version reports the applied schema version.
func Version(ctx context.Context, db *gorm.DB, driver config.Driver) (uint, bool, error) {
	m, release, err := newMigrator(ctx, db, driver)
	if err != nil {
		return 0, false, err
	}
	defer release()
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// newMigrator builds a migrator over the shared pool. The postgres driver
// holds a dedicated connection, so release must be called to hand it back;
// closing the sqlite driver would close the whole pool and is skipped.
func newMigrator(ctx context.Context, db *gorm.DB, driver config.Driver) (*migrate.Migrate, func(), error) {
	if db == nil {
		return nil, nil, fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	var (
		dbDriver database.Driver
		dbName   string
		closeDB  bool
	)
	switch driver {
	case config.DriverPostgres:
		dbName = "postgres"
		conn, connErr := sqlDB.Conn(ctx)
		if connErr != nil {
			return nil, nil, fmt.Errorf("failed to acquire connection: %w", connErr)
		}
		dbDriver, err = postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			_ = conn.Close()
		}
		closeDB = true
	case config.DriverSQLite:
		dbName = "sqlite3"
		dbDriver, err = sqlite3.WithInstance(sqlDB, &sqlite3.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s driver: %w", dbName, err)
	}

	release := func() {}
	if closeDB {
		release = func() { _ = dbDriver.Close() }
	}

	var m *migrate.Migrate
	if dir := GetMigrationsPath(); dir != "" {
		migrationsPath, absErr := filepath.Abs(dir)
		if absErr != nil {
			release()
			return nil, nil, fmt.Errorf("failed to get absolute path for migrations: %w", absErr)
		}
		if _, statErr := os.Stat(migrationsPath); os.IsNotExist(statErr) {
			release()
			return nil, nil, fmt.Errorf("migrations directory does not exist: %s", migrationsPath)
		}
		m, err = migrate.NewWithDatabaseInstance("file://"+migrationsPath, dbName, dbDriver)
	} else {
		var src source.Driver
		src, err = embeddedSource(driver)
		if err == nil {
			m, err = migrate.NewWithInstance("iofs", src, dbName, dbDriver)
		}
	}
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, release, nil
}

func embeddedSource(driver config.Driver) (source.Driver, error) {
	src, err := iofs.New(embedded, "sql/"+string(driver))
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	return src, nil
}
