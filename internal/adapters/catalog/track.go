package catalog

import (
	"fmt"

	"github.com/twpayne/go-polyline"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// DecodeTrack decodes a Google encoded polyline into a track of
// points. Used for replaying recorded walks through the engine.
func DecodeTrack(encoded []byte) ([]domain.Point, error) {
	coords, rest, err := polyline.DecodeCoords(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}

	points := make([]domain.Point, 0, len(coords))
	for _, c := range coords {
		points = append(points, domain.Point{Lat: c[0], Lon: c[1]})
	}
	return points, nil
}

// EncodeTrack encodes points as a Google encoded polyline.
func EncodeTrack(points []domain.Point) []byte {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return polyline.EncodeCoords(coords)
}
