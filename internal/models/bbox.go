package models

import (
	"github.com/paulmach/orb"
)

// BBox is a WGS84 bounding box. Min is the south-west corner, Max the
// north-east corner, except around the anti-meridian where Min.Lon() may
// exceed Max.Lon() until SplitAntimeridian is applied.
type BBox struct {
	Min orb.Point `json:"min"`
	Max orb.Point `json:"max"`
}

// NewBBox builds a bounding box from two corner coordinates.
func NewBBox(minLon, minLat, maxLon, maxLat float64) BBox {
	return BBox{
		Min: orb.Point{minLon, minLat},
		Max: orb.Point{maxLon, maxLat},
	}
}

// Extend grows the box by the given fraction of its span on every side,
// clamped to the valid coordinate range.
func (b BBox) Extend(percentage float64) BBox {
	lonDelta := (b.Max[0] - b.Min[0]) * percentage
	latDelta := (b.Max[1] - b.Min[1]) * percentage

	return BBox{
		Min: orb.Point{
			clamp(b.Min[0]-lonDelta, -180, 180),
			clamp(b.Min[1]-latDelta, -90, 90),
		},
		Max: orb.Point{
			clamp(b.Max[0]+lonDelta, -180, 180),
			clamp(b.Max[1]+latDelta, -90, 90),
		},
	}
}

// Polygon renders the box as a closed ring with nodesPerEdge vertices per
// edge. Values above 2 approximate the box's geodesic boundary, which
// matters for intersection tests against large country polygons.
func (b BBox) Polygon(nodesPerEdge int) orb.Polygon {
	if nodesPerEdge <= 2 {
		ring := orb.Ring{
			{b.Min[0], b.Min[1]},
			{b.Max[0], b.Min[1]},
			{b.Max[0], b.Max[1]},
			{b.Min[0], b.Max[1]},
			{b.Min[0], b.Min[1]},
		}
		return orb.Polygon{ring}
	}

	lonStep := (b.Max[0] - b.Min[0]) / float64(nodesPerEdge-1)
	latStep := (b.Max[1] - b.Min[1]) / float64(nodesPerEdge-1)

	ring := make(orb.Ring, 0, 4*(nodesPerEdge-1)+1)

	// counterclockwise: south edge, east edge, north edge, west edge
	for i := 0; i < nodesPerEdge; i++ {
		ring = append(ring, orb.Point{b.Min[0] + float64(i)*lonStep, b.Min[1]})
	}
	for i := 1; i < nodesPerEdge-1; i++ {
		ring = append(ring, orb.Point{b.Max[0], b.Min[1] + float64(i)*latStep})
	}
	for i := nodesPerEdge - 1; i >= 0; i-- {
		ring = append(ring, orb.Point{b.Min[0] + float64(i)*lonStep, b.Max[1]})
	}
	for i := nodesPerEdge - 2; i >= 1; i-- {
		ring = append(ring, orb.Point{b.Min[0], b.Min[1] + float64(i)*latStep})
	}
	ring = append(ring, ring[0])

	return orb.Polygon{ring}
}

// SplitAntimeridian returns the box unchanged, or two boxes when it wraps
// the anti-meridian.
func (b BBox) SplitAntimeridian() []BBox {
	if b.Min[0] > b.Max[0] {
		return []BBox{
			{Min: b.Min, Max: orb.Point{180, b.Max[1]}},
			{Min: orb.Point{-180, b.Min[1]}, Max: b.Max},
		}
	}
	return []BBox{b}
}

// Bound converts to an orb.Bound for projection and tile work.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: b.Min, Max: b.Max}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
