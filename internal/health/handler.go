// Package health provides the report server health endpoint.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/database/config"
	"github.com/festy23/patch_integrator/internal/database/database"
	"github.com/festy23/patch_integrator/internal/database/migrate"
)

const checkTimeout = 5 * time.Second

// Handler handles health check requests.
type Handler struct {
	db     *gorm.DB
	driver config.Driver
	logger *zap.SugaredLogger
}

// New creates a new health handler instance.
func New(db *gorm.DB, driver config.Driver, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		db:     db,
		driver: driver,
		logger: logger,
	}
}

// Response represents health check response.
type Response struct {
	Status        string `json:"status"`
	SchemaVersion uint   `json:"schema_version,omitempty"`
}

// Check handles GET /health request. The service is healthy when the
// database answers and its schema is not left dirty by a failed migration.
func (h *Handler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	if err := database.HealthCheck(ctx, h.db); err != nil {
		h.logger.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{Status: "unhealthy"})
		return
	}

	version, dirty, err := migrate.Version(ctx, h.db, h.driver)
	if err != nil {
		h.logger.Warnw("schema version check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, Response{Status: "unhealthy"})
		return
	}
	if dirty {
		h.logger.Warnw("database schema is dirty", "version", version)
		c.JSON(http.StatusServiceUnavailable, Response{Status: "dirty", SchemaVersion: version})
		return
	}

	c.JSON(http.StatusOK, Response{Status: "ok", SchemaVersion: version})
}
