// Package router provides statistics module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/statistics/handler"
	"github.com/festy23/patch_integrator/internal/statistics/repository"
	"github.com/festy23/patch_integrator/internal/statistics/service"
)

// RegisterRoutes registers statistics module routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, logger *zap.SugaredLogger) {
	repo := repository.New(db, logger)
	svc := service.New(repo, logger)
	h := handler.New(svc, logger)

	stats := r.Group("/statistics")
	stats.GET("/projects", h.GetProjectsStatistics)
	stats.GET("/refactorings", h.GetRefactoringStatistics)
	stats.GET("/conflicts", h.GetConflictStatistics)
}
