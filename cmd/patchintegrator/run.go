package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/config"
	dbconfig "github.com/festy23/patch_integrator/internal/database/config"
	"github.com/festy23/patch_integrator/internal/database/database"
	"github.com/festy23/patch_integrator/internal/database/migrate"
	"github.com/festy23/patch_integrator/internal/git"
	"github.com/festy23/patch_integrator/internal/github"
	"github.com/festy23/patch_integrator/internal/metrics"
	"github.com/festy23/patch_integrator/internal/middleware"
	"github.com/festy23/patch_integrator/internal/pipeline"
	"github.com/festy23/patch_integrator/internal/refminer"
	"github.com/festy23/patch_integrator/internal/store"
	"github.com/festy23/patch_integrator/pkg/logger"
)

// backend is what every command needs once setup succeeded.
type backend struct {
	log    *zap.SugaredLogger
	db     *gorm.DB
	driver dbconfig.Driver
}

func (b *backend) close() {
	if stats, err := database.GetStats(b.db); err == nil {
		b.log.Debugw("Database pool",
			"max_open", stats.MaxOpenConnections,
			"wait_count", stats.WaitCount,
			"wait_duration", stats.WaitDuration,
		)
	}
	if err := database.Close(b.db); err != nil {
		b.log.Warnw("Failed to close database", "error", err)
	}
	_ = b.log.Sync()
}

// setup loads the logger and opens a migrated database sized for workers.
// Every error it returns is a setup error.
func setup(ctx context.Context, cfg config.Config, dbProperties string, workers int) (*backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.NewWithConfig(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	dbCfg, err := dbconfig.LoadProperties(dbProperties)
	if err != nil {
		log.Errorw("No database configuration", "file", dbProperties, "error", err)
		return nil, err
	}

	log.Infow("Connecting to database", "driver", dbCfg.Driver)
	db, err := database.Open(ctx, dbCfg, workers, log)
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, err
	}

	if err := migrate.Migrate(ctx, db, dbCfg.Driver); err != nil {
		log.Errorw("Failed to migrate database", "error", err)
		_ = database.Close(db)
		return nil, err
	}

	return &backend{log: log, db: db, driver: dbCfg.Driver}, nil
}

func runAnalysis(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysis := cfg.Analysis
	b, err := setup(ctx, cfg, analysis.DBPropertiesFile, analysis.Parallelism)
	if err != nil {
		return err
	}
	defer b.close()
	log := b.log

	specs, err := pipeline.ReadReposFile(analysis.ReposFile)
	if err != nil {
		log.Errorw("Failed to read repository list", "file", analysis.ReposFile, "error", err)
		return err
	}

	m := metrics.New()
	resolver, err := github.NewResolver(github.Options{
		Token:     github.LoadToken(analysis.GitHubToken, analysis.GitHubPropertiesFile),
		Transport: m.InstrumentRoundTripper("github", nil, log),
	}, log)
	if err != nil {
		log.Errorw("Failed to create GitHub client", "error", err)
		return err
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		ClonePath:          analysis.ClonePath,
		Parallelism:        analysis.Parallelism,
		RefactoringTimeout: analysis.RefactoringTimeout,
		RecordFile:         analysis.RecordsFile,
	}, pipeline.Dependencies{
		Stores:      store.NewProvider(b.db, log),
		Provisioner: pipeline.NewGitProvisioner(git.NewWorkspace(log), analysis.HistoryMaxSteps, log),
		Resolver:    resolver,
		Detector:    refminer.NewDetector(analysis.RefMinerBin, log),
		Metrics:     m,
	}, log)

	if analysis.MetricsAddr != "" {
		srv := serveMetrics(analysis.MetricsAddr, m, log)
		defer shutdown(srv, cfg.Server.ShutdownTimeout, log)
	}

	log.Infow("Starting analysis",
		"projects", len(specs),
		"parallelism", analysis.Parallelism,
		"clone_path", analysis.ClonePath,
		"refactoring_timeout", analysis.RefactoringTimeout,
	)
	summary, err := orchestrator.Run(ctx, specs)

	stats := summary.Stats()
	log.Infow("Analysis finished",
		"run_id", summary.RunID,
		"projects_done", stats.ProjectsDone,
		"projects_skipped", stats.ProjectsSkipped,
		"projects_incomplete", stats.ProjectsIncomplete,
		"projects_failed", stats.ProjectsFailed,
		"patches_skipped", stats.PatchesSkipped,
		"merge_commits_clean", stats.MergeCommitsClean,
		"merge_commits_conflicting", stats.MergeCommitsConflicting,
		"merge_commits_failed", stats.MergeCommitsFailed,
		"refactorings_processed", stats.RefactoringsProcessed,
		"refactorings_timed_out", stats.RefactoringsTimedOut,
		"refactorings_failed", stats.RefactoringsFailed,
	)
	if projectErrs := summary.Err(); projectErrs != nil {
		log.Warnw("Some projects failed and stay pending for the next run", "error", projectErrs)
	}
	if err != nil {
		log.Warnw("Analysis interrupted", "error", err)
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	return nil
}

// serveMetrics exposes the run metrics on addr until shutdown is called.
func serveMetrics(addr string, m *metrics.Metrics, log *zap.SugaredLogger) *http.Server {
	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("Serving metrics", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("Metrics server failed", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server, timeout time.Duration, log *zap.SugaredLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("Server shutdown failed", "address", srv.Addr, "error", err)
	}
}
