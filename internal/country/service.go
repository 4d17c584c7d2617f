package country

import (
	"context"

	"github.com/paulmach/orb"

	"github.com/openaedmap/openaedmap-go/internal/db"
	"github.com/openaedmap/openaedmap-go/internal/models"
)

// bboxNodesPerEdge densifies bbox rings so intersection tests against
// large country polygons stay accurate.
const bboxNodesPerEdge = 8

// Service answers country read queries.
type Service struct {
	db *db.DB
}

// NewService creates a country query service.
func NewService(database *db.DB) *Service {
	return &Service{db: database}
}

// GetAll returns every known country.
func (s *Service) GetAll(ctx context.Context) ([]models.Country, error) {
	return s.db.GetAllCountries(ctx)
}

// GetIntersectingPoint returns the countries containing a point.
func (s *Service) GetIntersectingPoint(ctx context.Context, point orb.Point) ([]models.Country, error) {
	return s.db.GetCountriesIntersecting(ctx, point)
}

// GetIntersectingBBox returns the countries intersecting a bounding box,
// querying each anti-meridian half separately and merging by code.
func (s *Service) GetIntersectingBBox(ctx context.Context, bbox models.BBox) ([]models.Country, error) {
	var countries []models.Country
	seen := make(map[string]struct{})

	for _, half := range bbox.SplitAntimeridian() {
		batch, err := s.db.GetCountriesIntersecting(ctx, half.Polygon(bboxNodesPerEdge))
		if err != nil {
			return nil, err
		}
		for _, country := range batch {
			if _, dup := seen[country.Code]; dup {
				continue
			}
			seen[country.Code] = struct{}{}
			countries = append(countries, country)
		}
	}

	return countries, nil
}
