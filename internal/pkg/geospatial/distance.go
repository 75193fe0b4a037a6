package geospatial

import (
	"math"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// PointToSegment returns the distance in meters from p to the segment
// a-b. The point is projected onto the segment in a local
// equirectangular plane, longitude scaled by cos(latitude) so both axes
// carry meters (parametric t, clamped to [0,1]); the final distance to
// the clamped projection is great-circle. Trail segments are tens to
// low hundreds of meters long, where the planar projection error is
// negligible.
func PointToSegment(p, a, b domain.Point) float64 {
	cosLat := math.Cos(a.Lat * math.Pi / 180)
	dy := b.Lat - a.Lat
	dx := (b.Lon - a.Lon) * cosLat

	// A zero-length segment is treated as its first endpoint.
	if dx == 0 && dy == 0 {
		return Haversine(p.Lat, p.Lon, a.Lat, a.Lon)
	}

	py := p.Lat - a.Lat
	px := (p.Lon - a.Lon) * cosLat

	t := (px*dx + py*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return Haversine(p.Lat, p.Lon, a.Lat+t*(b.Lat-a.Lat), a.Lon+t*(b.Lon-a.Lon))
}

// DistanceToGeometry returns the minimum distance in meters from p to a
// geometry. Polylines take the minimum over their segments,
// multi-polylines over all member lines, a point geometry is plain
// great-circle distance. Unsupported variants return +Inf: a malformed
// shape never matches and never aborts a catalogue scan.
func DistanceToGeometry(p domain.Point, g domain.Geometry) float64 {
	switch g.Kind {
	case domain.GeometryPoint:
		return Haversine(p.Lat, p.Lon, g.Point.Lat, g.Point.Lon)
	case domain.GeometryPolyline, domain.GeometryMultiPolyline:
		minDist := math.Inf(1)
		for _, line := range g.Lines {
			if d := distanceToLine(p, line); d < minDist {
				minDist = d
			}
		}
		return minDist
	default:
		return math.Inf(1)
	}
}

func distanceToLine(p domain.Point, line []domain.Point) float64 {
	switch len(line) {
	case 0:
		return math.Inf(1)
	case 1:
		return Haversine(p.Lat, p.Lon, line[0].Lat, line[0].Lon)
	}

	minDist := math.Inf(1)
	for i := 0; i < len(line)-1; i++ {
		if d := PointToSegment(p, line[i], line[i+1]); d < minDist {
			minDist = d
		}
	}
	return minDist
}
