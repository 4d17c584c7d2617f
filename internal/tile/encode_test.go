package tile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/models"
)

func decodeTile(t *testing.T, data []byte) map[string]*mvt.Layer {
	t.Helper()
	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)

	byName := make(map[string]*mvt.Layer, len(layers))
	for _, layer := range layers {
		byName[layer.Name] = layer
	}
	return byName
}

func TestEncodeAEDTile(t *testing.T) {
	const z, x, y = 10, 571, 335
	bbox := ToBBox(z, x, y)
	inside := orb.Point{
		(bbox.Min[0] + bbox.Max[0]) / 2,
		(bbox.Min[1] + bbox.Max[1]) / 2,
	}

	single := models.AED{
		ID:       101,
		Version:  2,
		Tags:     map[string]string{"emergency": "defibrillator", "access": "yes"},
		Position: inside,
	}
	group := models.AEDGroup{Position: inside, Count: 12, Access: "permissive"}

	data, err := EncodeAEDTile(z, x, y, []models.SearchResult{
		models.SingleResult(&single),
		models.GroupResult(&group),
	})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	layers := decodeTile(t, data)
	layer, ok := layers["defibrillators"]
	require.True(t, ok)
	require.Len(t, layer.Features, 2)

	var sawSingle, sawGroup bool
	for _, feature := range layer.Features {
		props := feature.Properties
		if _, isSingle := props["node_id"]; isSingle {
			sawSingle = true
			assert.EqualValues(t, 101, props.MustInt("node_id"))
			assert.Equal(t, "yes", props.MustString("access"))
		} else {
			sawGroup = true
			assert.EqualValues(t, 12, props.MustInt("point_count"))
			assert.Equal(t, "12", props.MustString("point_count_abbreviated"))
			assert.Equal(t, "permissive", props.MustString("access"))
		}

		// quantized coordinates of in-tile features stay inside the extent
		point, ok := feature.Geometry.(orb.Point)
		require.True(t, ok)
		assert.GreaterOrEqual(t, point[0], 0.0)
		assert.GreaterOrEqual(t, point[1], 0.0)
		assert.LessOrEqual(t, point[0], float64(config.MVTExtent))
		assert.LessOrEqual(t, point[1], float64(config.MVTExtent))
	}
	assert.True(t, sawSingle)
	assert.True(t, sawGroup)
}

func TestEncodeCountryTile(t *testing.T) {
	const z, x, y = 3, 4, 2
	bbox := ToBBox(z, x, y)

	polygon := bbox.Polygon(2)
	country := models.Country{
		Code:          "PL",
		Names:         map[string]string{"default": "Poland", "PL": "Polska"},
		Geometry:      polygon,
		LabelPosition: orb.Point{(bbox.Min[0] + bbox.Max[0]) / 2, (bbox.Min[1] + bbox.Max[1]) / 2},
	}

	data, err := EncodeCountryTile(z, x, y, []CountryFeature{{Country: country, Count: 1520}})
	require.NoError(t, err)

	layers := decodeTile(t, data)

	countriesLayer, ok := layers["countries"]
	require.True(t, ok)
	require.Len(t, countriesLayer.Features, 1)

	defibLayer, ok := layers["defibrillators"]
	require.True(t, ok)
	require.Len(t, defibLayer.Features, 1)

	props := defibLayer.Features[0].Properties
	assert.Equal(t, "Poland", props.MustString("country_name"))
	assert.Equal(t, "PL", props.MustString("country_code"))
	assert.EqualValues(t, 1520, props.MustInt("point_count"))
	assert.Equal(t, "1.5k", props.MustString("point_count_abbreviated"))
}

func TestEncodeCountryTileDoesNotMutateGeometry(t *testing.T) {
	const z, x, y = 3, 4, 2
	bbox := ToBBox(z, x, y)

	// a ring dense enough for the simplifier to thin out
	polygon := bbox.Polygon(8)
	pointsBefore := len(polygon[0])

	country := models.Country{
		Code:          "XX",
		Names:         map[string]string{"default": "Test"},
		Geometry:      polygon,
		LabelPosition: orb.Point{bbox.Min[0], bbox.Min[1]},
	}

	_, err := EncodeCountryTile(z, x, y, []CountryFeature{{Country: country}})
	require.NoError(t, err)

	assert.Len(t, polygon[0], pointsBefore)
}

func TestEncodeEmptyTile(t *testing.T) {
	data, err := EncodeAEDTile(10, 0, 0, nil)
	require.NoError(t, err)

	layers, err := mvt.Unmarshal(data)
	require.NoError(t, err)
	for _, layer := range layers {
		assert.Empty(t, layer.Features)
	}
}
