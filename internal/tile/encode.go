package tile

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/simplify"

	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/models"
)

// CountryFeature pairs a country with its defibrillator count for the
// low-zoom tile layers.
type CountryFeature struct {
	Country models.Country
	Count   int
}

// EncodeCountryTile renders the low-zoom tile: one layer of simplified
// country polygons and one layer of label points carrying the counts.
func EncodeCountryTile(z, x, y uint32, features []CountryFeature) ([]byte, error) {
	tolerance := SimplifyTolerance(z)
	simplifier := simplify.DouglasPeucker(tolerance)

	polygons := geojson.NewFeatureCollection()
	labels := geojson.NewFeatureCollection()

	for _, cf := range features {
		polygon := geojson.NewFeature(simplifier.Simplify(orb.Clone(cf.Country.Geometry)))
		polygons.Append(polygon)

		label := geojson.NewFeature(cf.Country.LabelPosition)
		label.Properties = geojson.Properties{
			"country_name":            cf.Country.Name(),
			"country_code":            cf.Country.Code,
			"point_count":             cf.Count,
			"point_count_abbreviated": Abbreviate(cf.Count),
		}
		labels.Append(label)
	}

	return encode(z, x, y, mvt.Layers{
		mvt.NewLayer("countries", polygons),
		mvt.NewLayer("defibrillators", labels),
	})
}

// EncodeAEDTile renders the high-zoom tile: one layer where each feature
// is either a single defibrillator or a cluster.
func EncodeAEDTile(z, x, y uint32, results []models.SearchResult) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	for _, result := range results {
		feature := geojson.NewFeature(result.Position())
		if result.AED != nil {
			feature.Properties = geojson.Properties{
				"node_id": result.AED.ID,
				"access":  result.Access(),
			}
		} else {
			feature.Properties = geojson.Properties{
				"point_count":             result.Group.Count,
				"point_count_abbreviated": Abbreviate(result.Group.Count),
				"access":                  result.Access(),
			}
		}
		fc.Append(feature)
	}

	return encode(z, x, y, mvt.Layers{mvt.NewLayer("defibrillators", fc)})
}

// encode projects the layers from WGS84 into tile-local coordinates
// quantized to the MVT extent and marshals the binary tile. The source
// geometries are already correctly wound, so no re-orientation happens.
func encode(z, x, y uint32, layers mvt.Layers) ([]byte, error) {
	for _, layer := range layers {
		layer.Version = 2
		layer.Extent = config.MVTExtent
	}

	layers.ProjectToTile(maptile.New(x, y, maptile.Zoom(z)))

	data, err := mvt.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("marshal tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}
