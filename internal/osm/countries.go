package osm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// OSMCountry is one feature of the country polygon feed.
type OSMCountry struct {
	Tags                map[string]string
	Timestamp           float64 // epoch seconds, feed generation time
	RepresentativePoint orb.Point
	Geometry            orb.Geometry // Polygon or MultiPolygon
}

type countriesFeed struct {
	Features []struct {
		Properties struct {
			Tags                map[string]string `json:"tags"`
			Timestamp           float64           `json:"timestamp"`
			RepresentativePoint *geojson.Geometry `json:"representative_point"`
		} `json:"properties"`
		Geometry *geojson.Geometry `json:"geometry"`
	} `json:"features"`
}

// FetchCountries downloads the zstd-compressed country GeoJSON bundle and
// returns its features. Sanity checks on the feature count belong to the
// country ingestor.
func (c *Client) FetchCountries(ctx context.Context) ([]OSMCountry, error) {
	body, err := c.get(ctx, "countries", c.cfg.CountriesURL, DefaultTimeout)
	if err != nil {
		return nil, err
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer decoder.Close()

	raw, err := decoder.DecodeAll(body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress country feed: %v", ErrUpstreamUnavailable, err)
	}

	var feed countriesFeed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("%w: decode country feed: %v", ErrUpstreamUnavailable, err)
	}

	countries := make([]OSMCountry, 0, len(feed.Features))
	for _, feature := range feed.Features {
		if feature.Geometry == nil || feature.Properties.RepresentativePoint == nil {
			return nil, fmt.Errorf("%w: country feature without geometry", ErrUpstreamUnavailable)
		}

		point, ok := feature.Properties.RepresentativePoint.Geometry().(orb.Point)
		if !ok {
			return nil, fmt.Errorf("%w: representative_point is not a point", ErrUpstreamUnavailable)
		}

		countries = append(countries, OSMCountry{
			Tags:                feature.Properties.Tags,
			Timestamp:           feature.Properties.Timestamp,
			RepresentativePoint: point,
			Geometry:            feature.Geometry.Geometry(),
		})
	}

	c.logger.Info().Int("countries", len(countries)).Msg("country feed fetched")
	return countries, nil
}
