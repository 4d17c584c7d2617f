package osm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zstdCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	encoder, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer encoder.Close()
	return encoder.EncodeAll(data, nil)
}

func TestFetchCountries(t *testing.T) {
	feed := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {
					"tags": {"ISO3166-1": "PL", "name": "Polska", "name:en": "Poland"},
					"timestamp": 1704542400,
					"representative_point": {"type": "Point", "coordinates": [19.4, 52.1]}
				},
				"geometry": {
					"type": "Polygon",
					"coordinates": [[[14, 49], [24, 49], [24, 55], [14, 55], [14, 49]]]
				}
			},
			{
				"type": "Feature",
				"properties": {
					"tags": {"ISO3166-1": "CZ", "name": "Česko"},
					"timestamp": 1704542400,
					"representative_point": {"type": "Point", "coordinates": [15.3, 49.8]}
				},
				"geometry": {
					"type": "MultiPolygon",
					"coordinates": [[[[12, 48], [19, 48], [19, 51], [12, 51], [12, 48]]]]
				}
			}
		]
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/countries.geojson.zst", r.URL.Path)
		_, _ = w.Write(zstdCompress(t, []byte(feed)))
	}))
	defer srv.Close()

	countries, err := testClient(t, srv.URL).FetchCountries(context.Background())
	require.NoError(t, err)
	require.Len(t, countries, 2)

	assert.Equal(t, "PL", countries[0].Tags["ISO3166-1"])
	assert.Equal(t, float64(1704542400), countries[0].Timestamp)
	assert.Equal(t, orb.Point{19.4, 52.1}, countries[0].RepresentativePoint)
	assert.IsType(t, orb.Polygon{}, countries[0].Geometry)

	assert.IsType(t, orb.MultiPolygon{}, countries[1].Geometry)
}

func TestFetchCountriesNotCompressed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type": "FeatureCollection", "features": []}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchCountries(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestFetchCountriesUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchCountries(context.Background())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}
