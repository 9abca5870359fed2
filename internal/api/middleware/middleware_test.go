package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"civisync/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("error")
	r := gin.New()
	r.Use(Logger(log), Recovery(log))
	r.GET("/ping", handler)
	return r
}

func TestLoggerPassesRequestThrough(t *testing.T) {
	r := testRouter(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping?verbose=1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	r := testRouter(func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
