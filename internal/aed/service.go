// Package aed keeps the defibrillator table in sync with OpenStreetMap
// and answers spatial queries over it.
package aed

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/paulmach/orb"

	"github.com/openaedmap/openaedmap-go/internal/cluster"
	"github.com/openaedmap/openaedmap-go/internal/db"
	"github.com/openaedmap/openaedmap-go/internal/models"
)

const (
	countCacheSize = 1024
	countCacheTTL  = time.Hour
)

// Service answers AED read queries. Per-country counts are cached because
// the country tile layer requests them for every visible country.
type Service struct {
	db     *db.DB
	counts *expirable.LRU[string, int]
}

// NewService creates an AED query service.
func NewService(database *db.DB) *Service {
	return &Service{
		db:     database,
		counts: expirable.NewLRU[string, int](countCacheSize, nil, countCacheTTL),
	}
}

// GetByID returns one AED, or db.ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id int64) (*models.AED, error) {
	return s.db.GetAEDByID(ctx, id)
}

// GetAll returns every AED.
func (s *Service) GetAll(ctx context.Context) ([]models.AED, error) {
	return s.db.GetAllAEDs(ctx)
}

// GetByCountryCode returns the AEDs assigned to one country.
func (s *Service) GetByCountryCode(ctx context.Context, countryCode string) ([]models.AED, error) {
	return s.db.GetAEDsByCountryCode(ctx, countryCode)
}

// CountByCountryCode counts the AEDs of one country through a TTL cache.
func (s *Service) CountByCountryCode(ctx context.Context, countryCode string) (int, error) {
	if count, ok := s.counts.Get(countryCode); ok {
		return count, nil
	}

	count, err := s.db.CountAEDsByCountryCode(ctx, countryCode)
	if err != nil {
		return 0, err
	}
	s.counts.Add(countryCode, count)
	return count, nil
}

// InvalidateCounts drops the per-country count cache. The ingestors call
// this after every write batch.
func (s *Service) InvalidateCounts() {
	s.counts.Purge()
}

// GetIntersectingGeom returns the AEDs intersecting a geometry, clustered
// when groupEps is positive.
func (s *Service) GetIntersectingGeom(ctx context.Context, geometry orb.Geometry, groupEps float64) ([]models.SearchResult, error) {
	aeds, err := s.db.GetAEDsIntersecting(ctx, geometry)
	if err != nil {
		return nil, err
	}
	return cluster.Group(aeds, groupEps), nil
}

// GetIntersectingBBox is GetIntersectingGeom over a bounding box, querying
// each anti-meridian half separately.
func (s *Service) GetIntersectingBBox(ctx context.Context, bbox models.BBox, groupEps float64) ([]models.SearchResult, error) {
	var aeds []models.AED
	for _, half := range bbox.SplitAntimeridian() {
		batch, err := s.db.GetAEDsIntersecting(ctx, half.Polygon(2))
		if err != nil {
			return nil, err
		}
		aeds = append(aeds, batch...)
	}
	return cluster.Group(aeds, groupEps), nil
}
