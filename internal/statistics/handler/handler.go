// Package handler provides HTTP handlers for statistics endpoints.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/statistics/service"
)

// Handler handles HTTP requests for statistics endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new statistics handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// GetProjectsStatistics handles GET /statistics/projects request.
// @Summary Get per-project mining statistics
// @Tags Statistics
// @Produce json
// @Success 200 {object} model.ProjectsStatisticsResponse
// @Failure 500 {object} ErrorResponse
// @Router /statistics/projects [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetProjectsStatistics(c *gin.Context) {
	resp, err := h.service.GetProjectsStatistics(c.Request.Context())
	if err != nil {
		h.internalError(c, "error getting projects statistics", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRefactoringStatistics handles GET /statistics/refactorings request.
// @Summary Get refactoring detection statistics
// @Tags Statistics
// @Produce json
// @Success 200 {object} model.RefactoringStatisticsResponse
// @Failure 500 {object} ErrorResponse
// @Router /statistics/refactorings [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetRefactoringStatistics(c *gin.Context) {
	resp, err := h.service.GetRefactoringStatistics(c.Request.Context())
	if err != nil {
		h.internalError(c, "error getting refactoring statistics", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetConflictStatistics handles GET /statistics/conflicts request.
// @Summary Get conflict and region history statistics
// @Tags Statistics
// @Produce json
// @Success 200 {object} model.ConflictStatisticsResponse
// @Failure 500 {object} ErrorResponse
// @Router /statistics/conflicts [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetConflictStatistics(c *gin.Context) {
	resp, err := h.service.GetConflictStatistics(c.Request.Context())
	if err != nil {
		h.internalError(c, "error getting conflict statistics", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
