// Package database provides database connection management for the
// postgres and sqlite backends.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/festy23/patch_integrator/internal/database/config"
	"github.com/festy23/patch_integrator/internal/database/pool"
	"github.com/festy23/patch_integrator/pkg/retry"
)

// connectTimeout bounds the whole retried connection attempt.
const connectTimeout = 2 * time.Minute

// Dialector returns the gorm dialector for the configured driver.
func Dialector(cfg config.Config) (gorm.Dialector, error) {
	dsn := config.BuildDSN(cfg)
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewGormConfig returns the gorm configuration shared by every connection.
// SQL warnings and slow queries are routed to the given logger.
func NewGormConfig(logger *zap.SugaredLogger) *gorm.Config {
	gormCfg := &gorm.Config{TranslateError: true}
	if logger != nil {
		gormCfg.Logger = gormlogger.New(
			zap.NewStdLog(logger.Desugar().WithOptions(zap.AddCallerSkip(1))),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		)
	} else {
		gormCfg.Logger = gormlogger.Discard
	}
	return gormCfg
}

// Open connects to the configured database with retry and sizes the pool
// for the given number of concurrent workers.
func Open(ctx context.Context, cfg config.Config, workers int, logger *zap.SugaredLogger) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	retryCfg := config.LoadRetryConfigFromEnv()
	if logger != nil {
		retryCfg.OnRetry = func(attempt int, delay time.Duration, err error) {
			logger.Warnw("database connection failed, retrying",
				"driver", cfg.Driver,
				"attempt", attempt,
				"delay", delay,
				"error", config.SanitizeError(err, cfg),
			)
		}
	}

	db, err := retry.DoWithResult(ctx, retryCfg, func() (*gorm.DB, error) {
		db, err := gorm.Open(dialector, NewGormConfig(logger))
		if err != nil {
			return nil, err
		}
		if err := HealthCheck(ctx, db); err != nil {
			_ = Close(db)
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, config.SanitizeError(err, cfg)
	}

	if err := pool.SetupConnectionPool(db, pool.ForWorkers(workers)); err != nil {
		_ = Close(db)
		return nil, fmt.Errorf("failed to setup connection pool: %w", err)
	}

	return db, nil
}

// HealthCheck verifies database connection availability.
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close gracefully closes database connection.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// GetStats returns database connection pool statistics.
func GetStats(db *gorm.DB) (*sql.DBStats, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return &stats, nil
}
