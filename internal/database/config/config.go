// Package config provides database configuration management.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	appConfig "github.com/festy23/patch_integrator/internal/config"
	"github.com/festy23/patch_integrator/pkg/retry"
)

// Driver names a supported database backend.
type Driver string

const (
	// DriverPostgres selects PostgreSQL.
	DriverPostgres Driver = "postgres"
	// DriverSQLite selects a SQLite file.
	DriverSQLite Driver = "sqlite"
)

// ErrNoConfiguration indicates that no usable database configuration was found.
var ErrNoConfiguration = errors.New("no database configuration found")

// sqliteParams keeps concurrent workers from failing on a locked database
// and turns on foreign key enforcement.
const sqliteParams = "_busy_timeout=10000&_txlock=immediate&_foreign_keys=1"

// Config holds database connection configuration.
type Config struct {
	Driver   Driver
	Host     string
	User     string
	Password string
	DBName   string
	Port     string
	SSLMode  string
	TimeZone string
	// Path is the database file for the sqlite driver.
	Path string
}

// LoadProperties reads a KEY=VALUE properties file. Keys missing from the
// file fall back to the environment and then to defaults. A missing file
// or a missing DB_DRIVER yields ErrNoConfiguration.
func LoadProperties(path string) (Config, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: %s does not exist", ErrNoConfiguration, path)
		}
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	get := func(key, def string) string {
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		return appConfig.GetEnv(key, def)
	}

	cfg := Config{
		Driver:   Driver(strings.ToLower(get("DB_DRIVER", ""))),
		Host:     get("DB_HOST", "localhost"),
		User:     get("DB_USER", "postgres"),
		Password: get("DB_PASSWORD", ""),
		DBName:   get("DB_NAME", "patch_integrator"),
		Port:     get("DB_PORT", "5432"),
		SSLMode:  get("DB_SSLMODE", "disable"),
		TimeZone: get("DB_TIMEZONE", "UTC"),
		Path:     get("DB_PATH", "patch_integrator.db"),
	}

	if cfg.Driver == "" {
		return Config{}, fmt.Errorf("%w: DB_DRIVER is not set in %s", ErrNoConfiguration, path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates database configuration.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.Host == "" || c.DBName == "" {
			return fmt.Errorf("postgres requires DB_HOST and DB_NAME")
		}
		if _, err := strconv.Atoi(c.Port); err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", c.Port, err)
		}
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite requires DB_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (must be: postgres, sqlite)", c.Driver)
	}
	return nil
}

// BuildDSN constructs the driver specific DSN string from configuration.
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverSQLite {
		sep := "?"
		if strings.Contains(cfg.Path, "?") {
			sep = "&"
		}
		return cfg.Path + sep + sqliteParams
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode, cfg.TimeZone)
}

// SanitizeError removes the password from connection error messages.
func SanitizeError(err error, cfg Config) error {
	if err == nil {
		return nil
	}
	errMsg := err.Error()
	if cfg.Password != "" {
		errMsg = strings.ReplaceAll(errMsg, cfg.Password, "***")
	}
	return fmt.Errorf("failed to connect to database: %s", errMsg)
}

// LoadRetryConfigFromEnv loads connection retry configuration from environment variables.
func LoadRetryConfigFromEnv() retry.Config {
	cfg := retry.PostgresConfig()
	cfg.MaxAttempts = appConfig.GetEnvInt("DB_RETRY_MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.InitialDelay = appConfig.GetEnvDuration("DB_RETRY_INITIAL_DELAY", cfg.InitialDelay)
	cfg.MaxDelay = appConfig.GetEnvDuration("DB_RETRY_MAX_DELAY", cfg.MaxDelay)
	if m, err := strconv.ParseFloat(os.Getenv("DB_RETRY_MULTIPLIER"), 64); err == nil && m >= 1 {
		cfg.Multiplier = m
	}
	return cfg
}
