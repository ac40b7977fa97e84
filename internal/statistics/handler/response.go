package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/festy23/patch_integrator/internal/middleware"
)

const codeInternal = "INTERNAL_ERROR"

// ErrorResponse is the body of every failed statistics request.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes what went wrong.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// internalError logs err against the request and answers 500 without
// leaking database details to the client.
func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Errorw(msg, "error", err, "request_id", middleware.RequestID(c))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorBody{Code: codeInternal, Message: "internal server error"},
	})
}
