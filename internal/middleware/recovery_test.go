package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRecoveryRouter(logger *zap.SugaredLogger, aborted *bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Logger(logger))
	r.Use(Recovery(logger))
	r.Use(func(c *gin.Context) {
		c.Next()
		*aborted = c.IsAborted()
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})
	r.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return r
}

func TestRecovery_Middleware(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		logger, logs := observed()
		var aborted bool
		router := setupRecoveryRouter(logger, &aborted)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/panic", nil)

		assert.NotPanics(t, func() {
			router.ServeHTTP(w, req)
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, w.Body.String())

		panics := logs.FilterMessage("panic recovered").All()
		require.Len(t, panics, 1)
		assert.Equal(t, w.Header().Get(RequestIDHeader), panics[0].ContextMap()["request_id"])
	})

	t.Run("normal request works", func(t *testing.T) {
		logger, logs := observed()
		var aborted bool
		router := setupRecoveryRouter(logger, &aborted)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, aborted)
		assert.Zero(t, logs.FilterMessage("panic recovered").Len())
	})
}
