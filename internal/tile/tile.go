// Package tile renders slippy-map vector tiles of countries and
// defibrillators.
package tile

import (
	"fmt"
	"math"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/openaedmap/openaedmap-go/internal/config"
	"github.com/openaedmap/openaedmap-go/internal/models"
)

// ToLonLat returns the north-west corner of a tile in WGS84.
func ToLonLat(z, x, y uint32) orb.Point {
	n := math.Exp2(float64(z))
	lon := float64(x)/n*360 - 180
	lat := math.Atan(math.Sinh(math.Pi*(1-2*float64(y)/n))) * 180 / math.Pi
	return orb.Point{lon, lat}
}

// FromLonLat returns the tile containing a WGS84 coordinate at zoom z.
func FromLonLat(z uint32, lon, lat float64) (x, y uint32) {
	n := math.Exp2(float64(z))
	latRad := lat * math.Pi / 180

	fx := (lon + 180) / 360 * n
	fy := (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n

	x = uint32(min(max(fx, 0), n-1))
	y = uint32(min(max(fy, 0), n-1))
	return x, y
}

// ToBBox returns the WGS84 bounding box of a tile, south-west corner first.
func ToBBox(z, x, y uint32) models.BBox {
	sw := ToLonLat(z, x, y+1)
	ne := ToLonLat(z, x+1, y)
	return models.BBox{Min: sw, Max: ne}
}

// GroupEps derives the clustering epsilon from the zoom level. At the
// maximum zoom clustering is disabled and zero is returned.
func GroupEps(z uint32) float64 {
	if z >= config.TileMaxZ {
		return 0
	}
	return 9.6 / math.Exp2(float64(z))
}

// SimplifyTolerance derives the country polygon simplification tolerance
// from the zoom level.
func SimplifyTolerance(z uint32) float64 {
	return 0.5 / math.Exp2(float64(z))
}

// Abbreviate compacts a feature count for map labels: 1.2k, 3.4m.
func Abbreviate(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fm", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return strconv.Itoa(n)
	}
}
