//go:build e2e

package migrate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/festy23/patch_integrator/internal/database/config"
)

func TestMigrate_Postgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("patch_integrator"),
		postgres.WithUsername("miner"),
		postgres.WithPassword("miner"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgresDriver.Open(connStr), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	t.Setenv("MIGRATIONS_PATH", "")
	require.NoError(t, Migrate(ctx, db, config.DriverPostgres))
	require.NoError(t, Migrate(ctx, db, config.DriverPostgres))

	version, dirty, err := Version(ctx, db, config.DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, db.Exec(
		"INSERT INTO project (source_url, source_name, fork_url, fork_name) VALUES ('s', 's', 'f', 'f')").Error)
	err = db.Exec(
		"INSERT INTO refactoring_commit (project_id, commit_hash, is_processed, is_timed_out) VALUES (1, 'abc', TRUE, TRUE)").Error
	assert.Error(t, err, "processed and timed out must be exclusive")
}
