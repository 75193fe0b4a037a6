package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// FileSource loads the route catalogue from a GeoJSON file on disk.
// The file is the product of the offline extraction pipeline; ids,
// names and the requiresPayment flag come in as feature properties.
type FileSource struct {
	path string
}

// NewFileSource creates a catalogue source over a GeoJSON file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// LoadRoutes reads and parses the whole catalogue file.
func (s *FileSource) LoadRoutes(ctx context.Context) ([]domain.Route, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue %s: %w", s.path, err)
	}
	routes, err := ParseRoutes(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalogue %s: %w", s.path, err)
	}
	return routes, nil
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties routeProperties `json:"properties"`
	Geometry   *geometryDoc    `json:"geometry"`
}

type routeProperties struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Island          string `json:"island"`
	RequiresPayment bool   `json:"requiresPayment"`
}

type geometryDoc struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// ParseRoutes decodes a GeoJSON FeatureCollection into routes. Feature
// order is preserved. Geometry types other than Point, LineString and
// MultiLineString are carried through as unknown so the index can
// reject them with the offending route id attached; only malformed
// JSON is an error here.
func ParseRoutes(data []byte) ([]domain.Route, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode geojson: expected FeatureCollection, got %q", fc.Type)
	}

	routes := make([]domain.Route, 0, len(fc.Features))
	for i, f := range fc.Features {
		geom, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, f.Properties.ID, err)
		}
		routes = append(routes, domain.Route{
			ID:              f.Properties.ID,
			Name:            f.Properties.Name,
			Island:          f.Properties.Island,
			RequiresPayment: f.Properties.RequiresPayment,
			Geometry:        geom,
		})
	}
	return routes, nil
}

// ParseGeometry decodes a bare GeoJSON geometry object, as stored in
// the catalogue database's geometry column.
func ParseGeometry(data []byte) (domain.Geometry, error) {
	var g geometryDoc
	if err := json.Unmarshal(data, &g); err != nil {
		return domain.Geometry{}, fmt.Errorf("decode geometry: %w", err)
	}
	return decodeGeometry(&g)
}

// decodeGeometry maps one GeoJSON geometry. Positions are [lon, lat]
// with an optional elevation, which is dropped.
func decodeGeometry(g *geometryDoc) (domain.Geometry, error) {
	if g == nil {
		return domain.Geometry{}, nil
	}

	switch g.Type {
	case "Point":
		var pos []float64
		if err := json.Unmarshal(g.Coordinates, &pos); err != nil {
			return domain.Geometry{}, fmt.Errorf("point coordinates: %w", err)
		}
		p, err := position(pos)
		if err != nil {
			return domain.Geometry{}, err
		}
		return domain.NewPointGeometry(p), nil

	case "LineString":
		var raw [][]float64
		if err := json.Unmarshal(g.Coordinates, &raw); err != nil {
			return domain.Geometry{}, fmt.Errorf("linestring coordinates: %w", err)
		}
		line, err := positions(raw)
		if err != nil {
			return domain.Geometry{}, err
		}
		return domain.NewPolyline(line), nil

	case "MultiLineString":
		var raw [][][]float64
		if err := json.Unmarshal(g.Coordinates, &raw); err != nil {
			return domain.Geometry{}, fmt.Errorf("multilinestring coordinates: %w", err)
		}
		lines := make([][]domain.Point, 0, len(raw))
		for _, rawLine := range raw {
			line, err := positions(rawLine)
			if err != nil {
				return domain.Geometry{}, err
			}
			lines = append(lines, line)
		}
		return domain.NewMultiPolyline(lines), nil

	default:
		// Polygons and friends: unknown, rejected at index load.
		return domain.Geometry{}, nil
	}
}

func position(pos []float64) (domain.Point, error) {
	if len(pos) < 2 {
		return domain.Point{}, fmt.Errorf("position needs lon and lat, got %d values", len(pos))
	}
	return domain.Point{Lat: pos[1], Lon: pos[0]}, nil
}

func positions(raw [][]float64) ([]domain.Point, error) {
	out := make([]domain.Point, 0, len(raw))
	for _, pos := range raw {
		p, err := position(pos)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
