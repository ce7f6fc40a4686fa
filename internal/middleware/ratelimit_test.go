package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newLimitedRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func ping(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_ThrottlesAfterBurst(t *testing.T) {
	// 60 rpm yields a burst of 6 tokens refilling at one per second, so the
	// seventh back-to-back request from one client must be rejected.
	router := newLimitedRouter(NewRateLimiter(60))

	for i := 0; i < 6; i++ {
		require.Equal(t, http.StatusOK, ping(router).Code, "request %d", i)
	}

	rec := ping(router)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "rate_limited")
	require.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRateLimiter_NilLimiterPassesThrough(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(0))

	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, ping(router).Code)
	}
}
