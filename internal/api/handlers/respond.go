// Package handlers contains the HTTP endpoint handlers for the API server.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/openaedmap/openaedmap-go/internal/models"
)

// CountryService is the country read surface the handlers depend on.
type CountryService interface {
	GetAll(ctx context.Context) ([]models.Country, error)
	GetIntersectingBBox(ctx context.Context, bbox models.BBox) ([]models.Country, error)
}

// AEDService is the AED read surface the handlers depend on.
type AEDService interface {
	GetByID(ctx context.Context, id int64) (*models.AED, error)
	GetAll(ctx context.Context) ([]models.AED, error)
	GetByCountryCode(ctx context.Context, countryCode string) ([]models.AED, error)
	GetIntersectingBBox(ctx context.Context, bbox models.BBox, groupEps float64) ([]models.SearchResult, error)
	CountByCountryCode(ctx context.Context, countryCode string) (int, error)
}

// Error writes a plain-text error body and drops any pre-set caching
// directives so failures are never stored downstream.
func Error(c *gin.Context, status int, format string, args ...any) {
	c.Writer.Header().Del("Cache-Control")
	c.String(status, format, args...)
}
