package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/config"
	dbconfig "github.com/festy23/patch_integrator/internal/database/config"
	"github.com/festy23/patch_integrator/internal/health"
	"github.com/festy23/patch_integrator/internal/middleware"
	statisticsRouter "github.com/festy23/patch_integrator/internal/statistics/router"
)

func newServeCommand() *cobra.Command {
	v := viper.New()
	serve := &cobra.Command{
		Use:          "serve",
		Short:        "Serve read-only statistics over the mined data",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.LoadFromEnv()
			return runServer(cmd.Context(), cfg, v.GetString(flagDBProperties))
		},
	}
	serve.Flags().StringP(flagDBProperties, "d", config.LoadAnalysisConfigFromEnv().DBPropertiesFile, "database properties file")
	_ = v.BindPFlags(serve.Flags())
	return serve
}

// newServer builds the report router: health, statistics and nothing else.
func newServer(db *gorm.DB, driver dbconfig.Driver, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(log, "/health"))
	r.Use(middleware.Recovery(log))

	r.GET("/health", health.New(db, driver, log).Check)
	statisticsRouter.RegisterRoutes(r, db, log)
	return r
}

func runServer(ctx context.Context, cfg config.Config, dbProperties string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	b, err := setup(ctx, cfg, dbProperties, 1)
	if err != nil {
		return err
	}
	defer b.close()
	log := b.log

	srv := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      newServer(b.db, b.driver, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Starting report server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Errorw("Report server failed", "error", err)
			return err
		}
	case <-ctx.Done():
		log.Infow("Shutting down report server")
		shutdown(srv, cfg.Server.ShutdownTimeout, log)
	}
	return nil
}
