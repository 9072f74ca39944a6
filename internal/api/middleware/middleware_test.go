package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(handlers...)
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return router
}

func get(router *gin.Engine, remoteAddr string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitPerClient(t *testing.T) {
	router := newRouter(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, get(router, "10.0.0.1:1000"))

	// Another client has its own budget.
	assert.Equal(t, http.StatusOK, get(router, "10.0.0.2:1000"))
}

func TestRateLimitForgetsIdleClients(t *testing.T) {
	now := time.Now()
	limiter := newClientLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1, ClientTTL: time.Minute})
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.allow("a"))
	assert.True(t, limiter.allow("b"))
	assert.Equal(t, 2, limiter.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, limiter.allow("b"))
	assert.Equal(t, 1, limiter.size())
}

func TestGlobalRateLimit(t *testing.T) {
	router := newRouter(GlobalRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, get(router, "10.0.0.1:1000"))
	assert.Equal(t, http.StatusTooManyRequests, get(router, "10.0.0.2:1000"))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(DefaultCORSConfig()))
	router.POST("/terminal/execute", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/terminal/execute", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
