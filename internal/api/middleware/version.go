package middleware

import (
	"github.com/gin-gonic/gin"
)

// VersionHeader stamps every response with the running server version.
func VersionHeader(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Version", version)
		c.Next()
	}
}
