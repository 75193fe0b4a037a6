package geospatial

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

func TestHaversineSamePoint(t *testing.T) {
	// Pico do Areeiro summit
	d := Haversine(32.7357, -16.9289, 32.7357, -16.9289)
	assert.Equal(t, 0.0, d, "identical points must be exactly 0 m apart")
	assert.False(t, math.IsNaN(d), "identical points must not produce NaN")
}

func TestHaversineSymmetry(t *testing.T) {
	// Funchal marina to Vila Baleira (Porto Santo)
	ab := Haversine(32.6470, -16.9080, 33.0590, -16.3370)
	ba := Haversine(33.0590, -16.3370, 32.6470, -16.9080)
	assert.InDelta(t, ab, ba, 1e-9, "distance must be symmetric")
}

func TestHaversineKnownDistances(t *testing.T) {
	// One hundredth of a degree of latitude is 6371000 * 0.01 * pi/180 m
	// on the spherical model, independent of longitude.
	d := Haversine(32.7500, -16.9500, 32.7600, -16.9500)
	assert.InDelta(t, 1111.95, d, 0.05, "0.01 deg of latitude should be ~1112 m")

	// Along a parallel the same delta shrinks by cos(latitude).
	d = Haversine(32.7500, -16.9500, 32.7500, -16.9400)
	assert.InDelta(t, 935.2, d, 0.5, "0.01 deg of longitude at 32.75N should be ~935 m")

	// Funchal to Porto Santo, the longest hop in the archipelago.
	d = Haversine(32.6470, -16.9080, 33.0590, -16.3370)
	assert.InDelta(t, 70300, d, 1500, "Funchal-Porto Santo should be ~70 km")
}

func TestPointToSegmentOnSegment(t *testing.T) {
	a := domain.Point{Lat: 32.7500, Lon: -16.9500}
	b := domain.Point{Lat: 32.7600, Lon: -16.9400}

	// Midpoint of the segment in coordinate space.
	p := domain.Point{Lat: 32.7550, Lon: -16.9450}
	d := PointToSegment(p, a, b)
	assert.InDelta(t, 0, d, 0.01, "a point on the segment interior is at distance 0")
}

func TestPointToSegmentClampsToEndpoints(t *testing.T) {
	a := domain.Point{Lat: 32.7500, Lon: -16.9500}
	b := domain.Point{Lat: 32.7600, Lon: -16.9400}

	// Beyond b along the same line: projection clamps to b.
	p := domain.Point{Lat: 32.7700, Lon: -16.9300}
	d := PointToSegment(p, a, b)
	want := Haversine(p.Lat, p.Lon, b.Lat, b.Lon)
	assert.InDelta(t, want, d, 1e-9, "projection past the end clamps to the endpoint")

	// Before a: projection clamps to a.
	p = domain.Point{Lat: 32.7400, Lon: -16.9600}
	d = PointToSegment(p, a, b)
	want = Haversine(p.Lat, p.Lon, a.Lat, a.Lon)
	assert.InDelta(t, want, d, 1e-9, "projection before the start clamps to the start")
}

func TestPointToSegmentZeroLength(t *testing.T) {
	a := domain.Point{Lat: 32.7500, Lon: -16.9500}
	p := domain.Point{Lat: 32.7510, Lon: -16.9490}

	d := PointToSegment(p, a, a)
	assert.False(t, math.IsNaN(d), "zero-length segment must not divide by zero")
	assert.InDelta(t, Haversine(p.Lat, p.Lon, a.Lat, a.Lon), d, 1e-9,
		"zero-length segment degrades to its first endpoint")
}

func TestPointToSegmentMatchesBruteForceMinimum(t *testing.T) {
	// A ~150 m diagonal segment at Madeira latitude with a fix off to
	// the side near the warning band. Longitude degrees are shorter than
	// latitude degrees by cos(latitude) here, so a projection computed in
	// raw degrees would overestimate the distance by most of a meter.
	a := domain.Point{Lat: 32.7500, Lon: -16.9500}
	b := domain.Point{Lat: 32.7510, Lon: -16.9490}
	p := domain.Point{Lat: 32.7508, Lon: -16.9498}

	want := math.Inf(1)
	for i := 0; i <= 10000; i++ {
		f := float64(i) / 10000
		d := Haversine(p.Lat, p.Lon, a.Lat+f*(b.Lat-a.Lat), a.Lon+f*(b.Lon-a.Lon))
		if d < want {
			want = d
		}
	}

	got := PointToSegment(p, a, b)
	assert.InDelta(t, want, got, 0.05,
		"projection must land on the true closest point of the segment")
}

func TestDistanceToGeometryPoint(t *testing.T) {
	g := domain.NewPointGeometry(domain.Point{Lat: 32.7357, Lon: -16.9289})
	p := domain.Point{Lat: 32.7367, Lon: -16.9289}

	d := DistanceToGeometry(p, g)
	assert.InDelta(t, Haversine(p.Lat, p.Lon, 32.7357, -16.9289), d, 1e-9)
}

func TestDistanceToGeometryPolyline(t *testing.T) {
	// Shape of the Ponta de Sao Lourenco walk, simplified.
	g := domain.NewPolyline([]domain.Point{
		{Lat: 32.7500, Lon: -16.9500},
		{Lat: 32.7600, Lon: -16.9400},
		{Lat: 32.7700, Lon: -16.9300},
	})

	// A fix on the first segment's line.
	p := domain.Point{Lat: 32.7510, Lon: -16.9490}
	d := DistanceToGeometry(p, g)
	assert.InDelta(t, 0, d, 0.5, "fix on the trail should read as ~0 m")

	// A fix about half a kilometer off to the side.
	p = domain.Point{Lat: 32.7450, Lon: -16.9550}
	d = DistanceToGeometry(p, g)
	assert.Greater(t, d, 400.0)
	assert.Less(t, d, 900.0)
}

func TestDistanceToGeometryMultiPolyline(t *testing.T) {
	far := []domain.Point{
		{Lat: 33.0500, Lon: -16.3400},
		{Lat: 33.0600, Lon: -16.3300},
	}
	near := []domain.Point{
		{Lat: 32.7500, Lon: -16.9500},
		{Lat: 32.7600, Lon: -16.9400},
	}
	g := domain.NewMultiPolyline([][]domain.Point{far, near})

	p := domain.Point{Lat: 32.7510, Lon: -16.9490}
	d := DistanceToGeometry(p, g)
	assert.InDelta(t, 0, d, 0.5, "minimum must be taken across all member lines")
}

func TestDistanceToGeometryUnsupported(t *testing.T) {
	p := domain.Point{Lat: 32.75, Lon: -16.95}

	d := DistanceToGeometry(p, domain.Geometry{})
	assert.True(t, math.IsInf(d, 1), "unknown geometry kinds never match")
	assert.False(t, math.IsNaN(d))
}

func TestBoundingBoxContainsCircle(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(32.75, -16.95, 1000)

	assert.Less(t, minLat, 32.75)
	assert.Greater(t, maxLat, 32.75)
	assert.Less(t, minLon, -16.95)
	assert.Greater(t, maxLon, -16.95)

	// The box edge sits roughly the radius away.
	d := Haversine(32.75, -16.95, maxLat, -16.95)
	assert.InDelta(t, 1000, d, 5)
}
