package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/database/config"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := config.BuildDSN(config.Config{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "m.db")})
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGetMigrationsPath(t *testing.T) {
	t.Setenv("MIGRATIONS_PATH", "")
	assert.Empty(t, GetMigrationsPath())

	t.Setenv("MIGRATIONS_PATH", "custom/migrations")
	assert.Equal(t, "custom/migrations", GetMigrationsPath())
}

func TestMigrate_SQLite(t *testing.T) {
	t.Setenv("MIGRATIONS_PATH", "")
	db := openSQLite(t)

	require.NoError(t, Migrate(context.Background(), db, config.DriverSQLite))

	for _, table := range []string{
		"project", "patch", "merge_commit", "conflicting_java_file", "conflicting_region",
		"conflicting_region_history", "refactoring_commit", "refactoring", "refactoring_region",
	} {
		assert.True(t, db.Migrator().HasTable(table), "table %s", table)
	}

	version, dirty, err := Version(context.Background(), db, config.DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	t.Run("second run is a no-op", func(t *testing.T) {
		assert.NoError(t, Migrate(context.Background(), db, config.DriverSQLite))
	})

	t.Run("terminal states are exclusive", func(t *testing.T) {
		require.NoError(t, db.Exec(
			"INSERT INTO project (source_url, source_name, fork_url, fork_name) VALUES ('s', 's', 'f', 'f')").Error)
		err := db.Exec(
			"INSERT INTO refactoring_commit (project_id, commit_hash, is_processed, is_timed_out) VALUES (1, 'abc', 1, 1)").Error
		assert.Error(t, err)
	})

	t.Run("foreign keys are enforced", func(t *testing.T) {
		err := db.Exec("INSERT INTO patch (project_id, number) VALUES (999, 1)").Error
		assert.Error(t, err)
	})
}

func TestMigrate_Errors(t *testing.T) {
	t.Run("nil database", func(t *testing.T) {
		assert.ErrorContains(t, Migrate(context.Background(), nil, config.DriverSQLite), "database connection is nil")
	})

	t.Run("unsupported driver", func(t *testing.T) {
		assert.ErrorContains(t, Migrate(context.Background(), openSQLite(t), "oracle"), "unsupported database driver")
	})

	t.Run("missing override directory", func(t *testing.T) {
		t.Setenv("MIGRATIONS_PATH", "/non/existent/path")
		assert.ErrorContains(t, Migrate(context.Background(), openSQLite(t), config.DriverSQLite), "migrations directory does not exist")
	})

	t.Run("override directory is used", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_only.up.sql"),
			[]byte("CREATE TABLE marker (id INTEGER);"), 0o600))
		t.Setenv("MIGRATIONS_PATH", dir)

		db := openSQLite(t)
		require.NoError(t, Migrate(context.Background(), db, config.DriverSQLite))
		assert.True(t, db.Migrator().HasTable("marker"))
		assert.False(t, db.Migrator().HasTable("project"))
	})

	t.Run("closed connection", func(t *testing.T) {
		t.Setenv("MIGRATIONS_PATH", "")
		db := openSQLite(t)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		assert.Error(t, Migrate(context.Background(), db, config.DriverSQLite))
	})
}
