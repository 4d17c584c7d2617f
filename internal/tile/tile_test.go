package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLonLatKnownTiles(t *testing.T) {
	// the zoom-0 tile spans the whole web-mercator world
	nw := ToLonLat(0, 0, 0)
	assert.InDelta(t, -180, nw[0], 1e-9)
	assert.InDelta(t, 85.0511, nw[1], 1e-3)

	// tile grid center is the null island corner
	center := ToLonLat(1, 1, 1)
	assert.InDelta(t, 0, center[0], 1e-9)
	assert.InDelta(t, 0, center[1], 1e-9)
}

func TestTileRoundTrip(t *testing.T) {
	tests := []struct {
		z    uint32
		x, y uint32
	}{
		{3, 4, 2},
		{10, 571, 335},
		{16, 36433, 21693},
	}

	for _, tt := range tests {
		// a point strictly inside the tile maps back to the same tile
		bbox := ToBBox(tt.z, tt.x, tt.y)
		lon := (bbox.Min[0] + bbox.Max[0]) / 2
		lat := (bbox.Min[1] + bbox.Max[1]) / 2

		x, y := FromLonLat(tt.z, lon, lat)
		assert.Equal(t, tt.x, x, "z=%d", tt.z)
		assert.Equal(t, tt.y, y, "z=%d", tt.z)
	}
}

func TestToBBoxCorners(t *testing.T) {
	const z, x, y = 10, 571, 335

	bbox := ToBBox(z, x, y)
	nw := ToLonLat(z, x, y)

	// the north-west corner of the bbox is the tile's own corner point
	assert.Equal(t, nw[0], bbox.Min[0])
	assert.Equal(t, nw[1], bbox.Max[1])

	assert.Less(t, bbox.Min[0], bbox.Max[0])
	assert.Less(t, bbox.Min[1], bbox.Max[1])
}

func TestGroupEps(t *testing.T) {
	assert.InDelta(t, 9.6/8, GroupEps(3), 1e-12)
	assert.InDelta(t, 9.6/1024, GroupEps(10), 1e-12)

	// clustering is disabled at max zoom
	assert.Zero(t, GroupEps(16))
	assert.Zero(t, GroupEps(17))
}

func TestSimplifyTolerance(t *testing.T) {
	assert.InDelta(t, 0.0625, SimplifyTolerance(3), 1e-12)
	require.Greater(t, SimplifyTolerance(3), SimplifyTolerance(10))
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{7, "7"},
		{999, "999"},
		{1000, "1.0k"},
		{1250, "1.2k"},
		{999999, "1000.0k"},
		{1000000, "1.0m"},
		{2540000, "2.5m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Abbreviate(tt.n))
	}
}
