package country

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaedmap/openaedmap-go/internal/osm"
)

func TestNamesFromTags(t *testing.T) {
	names := namesFromTags(map[string]string{
		"name":      "Polska",
		"name:en":   "Poland",
		"name:de":   "Polen",
		"int_name":  "Poland",
		"ISO3166-1": "PL",
	})

	assert.Equal(t, "Poland", names["default"])
	assert.Equal(t, "Poland", names["EN"])
	assert.Equal(t, "Polen", names["DE"])
	_, hasPlain := names["NAME"]
	assert.False(t, hasPlain)
}

func TestNamesFromTagsDefaultFallback(t *testing.T) {
	// without name:en the international name wins, then the local one
	names := namesFromTags(map[string]string{"int_name": "Georgia", "name": "საქართველო"})
	assert.Equal(t, "Georgia", names["default"])

	names = namesFromTags(map[string]string{"name": "საქართველო"})
	assert.Equal(t, "საქართველო", names["default"])

	names = namesFromTags(map[string]string{"ISO3166-1": "GE"})
	assert.Empty(t, names["default"])
}

func TestBuildCountries(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	features := []osm.OSMCountry{
		{
			Tags:                map[string]string{"ISO3166-1": "PL", "name": "Polska", "name:en": "Poland"},
			Timestamp:           1700000000,
			RepresentativePoint: orb.Point{0.5, 0.5},
			Geometry:            orb.Polygon{ring},
		},
		{
			Tags:                map[string]string{"name": "Atlantis"},
			Timestamp:           1700000000,
			RepresentativePoint: orb.Point{0, 0},
			Geometry:            orb.Polygon{ring},
		},
	}

	countries := buildCountries(features)
	require.Len(t, countries, 2)

	assert.Equal(t, "PL", countries[0].Code)
	assert.Equal(t, "Poland", countries[0].Names["default"])
	assert.Equal(t, orb.Point{0.5, 0.5}, countries[0].LabelPosition)

	assert.Equal(t, "XX", countries[1].Code)
	assert.Equal(t, "Atlantis", countries[1].Names["default"])
}

func TestBuildCountriesUniqueCodesFirst(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}
	shared := map[string]string{"ISO3166-1": "CY", "ISO3166-1:alpha3": "CYP"}

	countries := buildCountries([]osm.OSMCountry{
		{Tags: shared, Geometry: orb.Polygon{ring}},
		{Tags: shared, Geometry: orb.Polygon{ring}},
	})
	require.Len(t, countries, 2)
	assert.Equal(t, "CY", countries[0].Code)
	assert.Equal(t, "CYP", countries[1].Code)
}
