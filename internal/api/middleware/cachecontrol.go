package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// FormatCacheControl renders the shared Cache-Control form used across
// the API.
func FormatCacheControl(maxAge, stale time.Duration) string {
	return fmt.Sprintf("public, max-age=%d, stale-while-revalidate=%d", int(maxAge.Seconds()), int(stale.Seconds()))
}

// SetCacheControl stamps a response with the standard caching directives.
func SetCacheControl(c *gin.Context, maxAge, stale time.Duration) {
	c.Header("Cache-Control", FormatCacheControl(maxAge, stale))
}

// SetCacheControlNoTransform is SetCacheControl plus no-transform, needed
// for binary tile payloads that CDNs would otherwise recompress.
func SetCacheControlNoTransform(c *gin.Context, maxAge, stale time.Duration) {
	c.Header("Cache-Control", FormatCacheControl(maxAge, stale)+", no-transform")
}

// ParseCacheControl extracts the max-age and stale-while-revalidate
// durations from a header produced by FormatCacheControl.
func ParseCacheControl(header string) (maxAge, stale time.Duration, ok bool) {
	var sawMaxAge, sawStale bool

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if value, found := strings.CutPrefix(part, "max-age="); found {
			seconds, err := strconv.Atoi(value)
			if err != nil {
				return 0, 0, false
			}
			maxAge = time.Duration(seconds) * time.Second
			sawMaxAge = true
		} else if value, found := strings.CutPrefix(part, "stale-while-revalidate="); found {
			seconds, err := strconv.Atoi(value)
			if err != nil {
				return 0, 0, false
			}
			stale = time.Duration(seconds) * time.Second
			sawStale = true
		}
	}

	return maxAge, stale, sawMaxAge && sawStale
}

// DefaultCacheControl pre-sets the default caching class on GET and HEAD
// requests. Handlers override it for their own class, and error writers
// drop it.
func DefaultCacheControl(maxAge, stale time.Duration) gin.HandlerFunc {
	header := FormatCacheControl(maxAge, stale)

	return func(c *gin.Context) {
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" {
			c.Header("Cache-Control", header)
		}
		c.Next()
	}
}
