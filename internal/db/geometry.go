package db

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// Geometry crosses the database boundary as well-known binary: parameters
// go in through ST_GeomFromWKB and rows come out through ST_AsBinary.

func marshalWKB(g orb.Geometry) ([]byte, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal geometry: %w", err)
	}
	return data, nil
}

func unmarshalWKB(data []byte) (orb.Geometry, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal geometry: %w", err)
	}
	return g, nil
}

func unmarshalWKBPoint(data []byte) (orb.Point, error) {
	g, err := unmarshalWKB(data)
	if err != nil {
		return orb.Point{}, err
	}
	point, ok := g.(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected point geometry, got %T", g)
	}
	return point, nil
}
