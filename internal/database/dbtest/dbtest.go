// Package dbtest opens throw-away migrated sqlite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/database/config"
	"github.com/festy23/patch_integrator/internal/database/database"
	"github.com/festy23/patch_integrator/internal/database/migrate"
)

// Open returns a migrated sqlite database living in t.TempDir. The pool is
// sized for the given number of workers.
func Open(t testing.TB, workers int) *gorm.DB {
	t.Helper()

	cfg := config.Config{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")}
	db, err := database.Open(context.Background(), cfg, workers, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, migrate.Migrate(context.Background(), db, config.DriverSQLite))
	return db
}
