package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProperties(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "database.properties")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProperties(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		path := writeProperties(t, `
# analysis database
DB_DRIVER=postgres
DB_HOST=db.internal
DB_PORT=5433
DB_USER=miner
DB_PASSWORD=s3cret
DB_NAME=forks
`)
		cfg, err := LoadProperties(path)
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, cfg.Driver)
		assert.Equal(t, "db.internal", cfg.Host)
		assert.Equal(t, "5433", cfg.Port)
		assert.Equal(t, "miner", cfg.User)
		assert.Equal(t, "s3cret", cfg.Password)
		assert.Equal(t, "forks", cfg.DBName)
		assert.Equal(t, "disable", cfg.SSLMode)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := writeProperties(t, "DB_DRIVER=SQLite\nDB_PATH=/tmp/mined.db\n")
		cfg, err := LoadProperties(path)
		require.NoError(t, err)
		assert.Equal(t, DriverSQLite, cfg.Driver)
		assert.Equal(t, "/tmp/mined.db", cfg.Path)
	})

	t.Run("environment fills gaps", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "from-env")
		path := writeProperties(t, "DB_DRIVER=postgres\n")
		cfg, err := LoadProperties(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Password)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProperties(filepath.Join(t.TempDir(), "absent.properties"))
		assert.True(t, errors.Is(err, ErrNoConfiguration))
	})

	t.Run("missing driver", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "")
		_, err := LoadProperties(writeProperties(t, "DB_HOST=localhost\n"))
		assert.ErrorIs(t, err, ErrNoConfiguration)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := LoadProperties(writeProperties(t, "DB_DRIVER=oracle\n"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoConfiguration)
		assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
	})

	t.Run("bad port", func(t *testing.T) {
		_, err := LoadProperties(writeProperties(t, "DB_DRIVER=postgres\nDB_PORT=abc\n"))
		assert.ErrorContains(t, err, "invalid DB_PORT")
	})
}

func TestBuildDSN(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		dsn := BuildDSN(Config{
			Driver: DriverPostgres, Host: "localhost", User: "u", Password: "p",
			DBName: "d", Port: "5432", SSLMode: "disable", TimeZone: "UTC",
		})
		assert.Equal(t, "host=localhost user=u password=p dbname=d port=5432 sslmode=disable TimeZone=UTC", dsn)
	})

	t.Run("sqlite", func(t *testing.T) {
		assert.Equal(t, "mined.db?"+sqliteParams, BuildDSN(Config{Driver: DriverSQLite, Path: "mined.db"}))
		assert.Equal(t, "file:x.db?cache=shared&"+sqliteParams, BuildDSN(Config{Driver: DriverSQLite, Path: "file:x.db?cache=shared"}))
	})
}

func TestSanitizeError(t *testing.T) {
	cfg := Config{Password: "hunter2"}

	assert.NoError(t, SanitizeError(nil, cfg))

	err := SanitizeError(errors.New("password authentication failed: password=hunter2"), cfg)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Contains(t, err.Error(), "***")
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestLoadRetryConfigFromEnv(t *testing.T) {
	t.Setenv("DB_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("DB_RETRY_INITIAL_DELAY", "10ms")
	t.Setenv("DB_RETRY_MULTIPLIER", "1.5")

	cfg := LoadRetryConfigFromEnv()
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.InDelta(t, 1.5, cfg.Multiplier, 0.0001)
	assert.NotEmpty(t, cfg.RetryableErrors)
}
