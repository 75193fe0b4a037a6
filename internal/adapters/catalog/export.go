package catalog

import (
	"encoding/json"
	"fmt"
	"image/color"
	"io"

	"github.com/twpayne/go-kml/v2"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// ExportGeoJSON writes routes back out as a FeatureCollection in the
// same shape the loader accepts, so exported files round-trip.
func ExportGeoJSON(routes []domain.Route) ([]byte, error) {
	features := make([]feature, 0, len(routes))
	for _, r := range routes {
		geom, err := encodeGeometry(r.Geometry)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", r.ID, err)
		}
		features = append(features, feature{
			Type: "Feature",
			Properties: routeProperties{
				ID:              r.ID,
				Name:            r.Name,
				Island:          r.Island,
				RequiresPayment: r.RequiresPayment,
			},
			Geometry: geom,
		})
	}

	return json.MarshalIndent(featureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}, "", "  ")
}

// ExportKML writes routes as a KML document for map viewers. Paying
// routes get a red line style, free ones a green one.
func ExportKML(w io.Writer, routes []domain.Route) error {
	children := []kml.Element{
		kml.Name("Madeira walking trails"),
		kml.SharedStyle("paying",
			kml.LineStyle(
				kml.Color(color.RGBA{R: 0xff, A: 0xff}),
				kml.Width(3),
			),
		),
		kml.SharedStyle("free",
			kml.LineStyle(
				kml.Color(color.RGBA{G: 0xc8, A: 0xff}),
				kml.Width(3),
			),
		),
	}

	for _, r := range routes {
		children = append(children, placemark(r))
	}

	doc := kml.KML(kml.Document(children...))
	if err := doc.WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("write kml: %w", err)
	}
	return nil
}

func placemark(r domain.Route) kml.Element {
	styleURL := "#free"
	if r.RequiresPayment {
		styleURL = "#paying"
	}

	children := []kml.Element{
		kml.Name(fmt.Sprintf("%s %s", r.ID, r.Name)),
		kml.Description(fmt.Sprintf("Island: %s. Paid pass required: %t.", r.Island, r.RequiresPayment)),
		kml.StyleURL(styleURL),
	}

	switch r.Geometry.Kind {
	case domain.GeometryPoint:
		p := r.Geometry.Point
		children = append(children, kml.Point(
			kml.Coordinates(kml.Coordinate{Lon: p.Lon, Lat: p.Lat}),
		))
	case domain.GeometryPolyline:
		children = append(children, lineString(r.Geometry.Lines[0]))
	case domain.GeometryMultiPolyline:
		lines := make([]kml.Element, 0, len(r.Geometry.Lines))
		for _, line := range r.Geometry.Lines {
			lines = append(lines, lineString(line))
		}
		children = append(children, kml.MultiGeometry(lines...))
	}

	return kml.Placemark(children...)
}

func lineString(line []domain.Point) kml.Element {
	coords := make([]kml.Coordinate, 0, len(line))
	for _, p := range line {
		coords = append(coords, kml.Coordinate{Lon: p.Lon, Lat: p.Lat})
	}
	return kml.LineString(kml.Tessellate(true), kml.Coordinates(coords...))
}

// EncodeGeometry writes one geometry as a bare GeoJSON geometry
// object, the inverse of ParseGeometry.
func EncodeGeometry(g domain.Geometry) ([]byte, error) {
	doc, err := encodeGeometry(g)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// encodeGeometry is the inverse of decodeGeometry.
func encodeGeometry(g domain.Geometry) (*geometryDoc, error) {
	marshal := func(v any) (json.RawMessage, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode coordinates: %w", err)
		}
		return data, nil
	}

	switch g.Kind {
	case domain.GeometryPoint:
		coords, err := marshal([]float64{g.Point.Lon, g.Point.Lat})
		if err != nil {
			return nil, err
		}
		return &geometryDoc{Type: "Point", Coordinates: coords}, nil

	case domain.GeometryPolyline:
		coords, err := marshal(lonLatLine(g.Lines[0]))
		if err != nil {
			return nil, err
		}
		return &geometryDoc{Type: "LineString", Coordinates: coords}, nil

	case domain.GeometryMultiPolyline:
		raw := make([][][]float64, 0, len(g.Lines))
		for _, line := range g.Lines {
			raw = append(raw, lonLatLine(line))
		}
		coords, err := marshal(raw)
		if err != nil {
			return nil, err
		}
		return &geometryDoc{Type: "MultiLineString", Coordinates: coords}, nil

	default:
		return nil, fmt.Errorf("unsupported geometry kind %s", g.Kind)
	}
}

func lonLatLine(line []domain.Point) [][]float64 {
	out := make([][]float64, 0, len(line))
	for _, p := range line {
		out = append(out, []float64{p.Lon, p.Lat})
	}
	return out
}
