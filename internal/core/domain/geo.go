package domain

// Point represents a geographic coordinate (WGS 84). No altitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GeometryKind discriminates the supported geometry variants.
type GeometryKind int

const (
	// GeometryUnknown is the zero value. Loaders produce it for shapes
	// they cannot represent; the catalogue rejects it at load time and
	// distance math treats it as infinitely far away.
	GeometryUnknown GeometryKind = iota
	GeometryPoint
	GeometryPolyline
	GeometryMultiPolyline
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryPoint:
		return "point"
	case GeometryPolyline:
		return "polyline"
	case GeometryMultiPolyline:
		return "multipolyline"
	default:
		return "unknown"
	}
}

// Geometry is a tagged variant over {Point, Polyline, MultiPolyline}.
// Kind selects the payload: Point for GeometryPoint, Lines[0] for
// GeometryPolyline, all of Lines for GeometryMultiPolyline. Immutable
// once loaded into the catalogue.
type Geometry struct {
	Kind  GeometryKind `json:"kind"`
	Point Point        `json:"point,omitempty"`
	Lines [][]Point    `json:"lines,omitempty"`
}

// NewPointGeometry wraps a single coordinate.
func NewPointGeometry(p Point) Geometry {
	return Geometry{Kind: GeometryPoint, Point: p}
}

// NewPolyline wraps an ordered vertex sequence.
func NewPolyline(points []Point) Geometry {
	return Geometry{Kind: GeometryPolyline, Lines: [][]Point{points}}
}

// NewMultiPolyline wraps a set of polylines.
func NewMultiPolyline(lines [][]Point) Geometry {
	return Geometry{Kind: GeometryMultiPolyline, Lines: lines}
}

// Polylines returns the line payload regardless of variant: one line for
// GeometryPolyline, all lines for GeometryMultiPolyline, nil otherwise.
func (g Geometry) Polylines() [][]Point {
	switch g.Kind {
	case GeometryPolyline, GeometryMultiPolyline:
		return g.Lines
	default:
		return nil
	}
}

// Valid reports whether the geometry honors its variant's shape rules:
// a polyline needs at least two vertices, a multi-polyline at least one
// valid member line.
func (g Geometry) Valid() bool {
	switch g.Kind {
	case GeometryPoint:
		return true
	case GeometryPolyline:
		return len(g.Lines) == 1 && len(g.Lines[0]) >= 2
	case GeometryMultiPolyline:
		if len(g.Lines) == 0 {
			return false
		}
		for _, line := range g.Lines {
			if len(line) < 2 {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}
