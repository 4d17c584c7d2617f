package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	rateLimiter, err := NewRateLimiter(2, "1m")
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(rateLimiter)
	engine.GET("/thing", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	for range 2 {
		rec := doRequest(engine, http.MethodGet, "/thing", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doRequest(engine, http.MethodGet, "/thing", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiterRejectsBadPeriod(t *testing.T) {
	_, err := NewRateLimiter(10, "often")
	assert.Error(t, err)
}
