package usecases

import (
	"math"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/pkg/geospatial"
)

// RouteIndex is the in-memory trail catalogue. Load replaces the whole
// set after validating it; afterwards the index is read-only, so
// concurrent readers need no locking as long as Load happens before
// serving starts.
type RouteIndex struct {
	routes []domain.Route
	byID   map[string]int
}

// NewRouteIndex creates an empty index.
func NewRouteIndex() *RouteIndex {
	return &RouteIndex{byID: map[string]int{}}
}

// Load validates the catalogue and replaces the active set. A duplicate
// id or an unsupported or malformed geometry yields a
// domain.ValidationError and leaves the previous set untouched; the
// input must be corrected before retry.
func (ri *RouteIndex) Load(routes []domain.Route) error {
	byID := make(map[string]int, len(routes))
	for i, r := range routes {
		if r.ID == "" {
			return domain.NewValidationError("", "route at position %d has no id", i)
		}
		if _, dup := byID[r.ID]; dup {
			return domain.NewValidationError(r.ID, "duplicate route id")
		}
		if r.Geometry.Kind == domain.GeometryUnknown {
			return domain.NewValidationError(r.ID, "unsupported geometry")
		}
		if !r.Geometry.Valid() {
			return domain.NewValidationError(r.ID, "malformed %s geometry", r.Geometry.Kind)
		}
		byID[r.ID] = i
	}

	ri.routes = make([]domain.Route, len(routes))
	copy(ri.routes, routes)
	ri.byID = byID
	return nil
}

// Nearest scans the full catalogue and returns the route with the
// minimum distance to p, together with that distance in meters. The
// scan is linear on purpose: at tens to low hundreds of routes a
// spatial index buys nothing, and iteration order gives a stable
// tie-break (the earlier route wins an exact tie). An empty catalogue
// returns (nil, +Inf).
func (ri *RouteIndex) Nearest(p domain.Point) (*domain.Route, float64) {
	var nearest *domain.Route
	minDist := math.Inf(1)

	for i := range ri.routes {
		d := geospatial.DistanceToGeometry(p, ri.routes[i].Geometry)
		if d < minDist {
			minDist = d
			nearest = &ri.routes[i]
		}
	}
	return nearest, minDist
}

// Get returns a route by id.
func (ri *RouteIndex) Get(id string) (*domain.Route, bool) {
	i, ok := ri.byID[id]
	if !ok {
		return nil, false
	}
	return &ri.routes[i], true
}

// All returns the catalogue in load order.
func (ri *RouteIndex) All() []domain.Route {
	return ri.routes
}

// Len returns the number of loaded routes.
func (ri *RouteIndex) Len() int {
	return len(ri.routes)
}
