package catalog_test

import (
	"math"
	"testing"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/core/domain"
)

func TestDecodeTrack(t *testing.T) {
	// Reference vector from the encoded polyline format docs.
	points, err := catalog.DecodeTrack([]byte("_p~iF~ps|U_ulLnnqC_mqNvxq`@"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := []domain.Point{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	if len(points) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(points))
	}
	for i := range want {
		if math.Abs(points[i].Lat-want[i].Lat) > 1e-5 || math.Abs(points[i].Lon-want[i].Lon) > 1e-5 {
			t.Errorf("point %d: expected %+v, got %+v", i, want[i], points[i])
		}
	}
}

func TestEncodeTrack_RoundTrip(t *testing.T) {
	track := []domain.Point{
		{Lat: 32.7500, Lon: -16.9500},
		{Lat: 32.7512, Lon: -16.9488},
		{Lat: 32.7530, Lon: -16.9471},
	}

	decoded, err := catalog.DecodeTrack(catalog.EncodeTrack(track))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(track) {
		t.Fatalf("expected %d points, got %d", len(track), len(decoded))
	}
	for i := range track {
		if math.Abs(decoded[i].Lat-track[i].Lat) > 1e-5 || math.Abs(decoded[i].Lon-track[i].Lon) > 1e-5 {
			t.Errorf("point %d: expected %+v, got %+v", i, track[i], decoded[i])
		}
	}
}
