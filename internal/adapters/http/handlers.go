package http

import (
	"errors"
	"math"

	"github.com/gofiber/fiber/v2"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
)

// nearestResponse is the payload of the nearest-route lookup. Distance
// is null when the catalogue is empty (nothing is "infinitely far" in
// JSON).
type nearestResponse struct {
	Route           *domain.Route `json:"route"`
	DistanceMeters  *float64      `json:"distance_meters"`
	WithinThreshold bool          `json:"within_threshold"`
}

// ListRoutesHandler lists catalogue routes with optional filters.
func ListRoutesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := usecases.RouteFilter{Island: c.Query("island")}
		if raw := c.Query("requires_payment"); raw != "" {
			switch raw {
			case "true":
				v := true
				filter.RequiresPayment = &v
			case "false":
				v := false
				filter.RequiresPayment = &v
			default:
				return errBadRequest(c, "requires_payment must be true or false")
			}
		}

		routes := deps.Routes.List(c.UserContext(), filter)

		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 100)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 500 {
			limit = 100
		}

		total := len(routes)
		if offset >= total {
			routes = nil
		} else {
			end := offset + limit
			if end > total {
				end = total
			}
			routes = routes[offset:end]
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: routes, Pagination: pg})
	}
}

// GetRouteHandler returns a single route by id.
func GetRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		route, err := deps.Routes.Get(c.UserContext(), id)
		if err != nil {
			return errNotFound(c, "route not found")
		}
		return c.JSON(route)
	}
}

// NearestRouteHandler returns the route closest to a coordinate.
func NearestRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lat := c.QueryFloat("lat", math.NaN())
		lon := c.QueryFloat("lon", math.NaN())
		if math.IsNaN(lat) || math.IsNaN(lon) {
			return errBadRequest(c, "lat and lon are required")
		}
		if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
			return errBadRequest(c, "lat must be in [-90,90] and lon in [-180,180]")
		}

		route, dist, within := deps.Routes.Nearest(c.UserContext(), lat, lon)

		resp := nearestResponse{Route: route, WithinThreshold: within}
		if !math.IsInf(dist, 1) {
			resp.DistanceMeters = &dist
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(resp)
	}
}

// StatusesHandler returns the operational status map for all routes
// the feed knows about.
func StatusesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"statuses": deps.Routes.Statuses(c.UserContext()),
		})
	}
}

// RouteStatusHandler returns one route's operational status.
func RouteStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "route id is required")
		}
		status, err := deps.Routes.Status(c.UserContext(), id)
		if err != nil {
			return errNotFound(c, "route not found")
		}
		return c.JSON(fiber.Map{"route_id": id, "status": status})
	}
}

// ListPassesHandler returns today's active paid marks.
func ListPassesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		marks := deps.Ledger.Active(c.UserContext())
		c.Set("Cache-Control", "no-store")
		return c.JSON(fiber.Map{
			"date":   deps.Ledger.Today(),
			"passes": marks,
		})
	}
}

// MarkPaidHandler records today's payment for a route and returns the
// re-derived decision.
func MarkPaidHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("routeId")
		d, err := deps.Proximity.MarkPaid(c.UserContext(), id)
		if errors.Is(err, domain.ErrRouteNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(d)
	}
}

// UnmarkPaidHandler removes a route's paid mark.
func UnmarkPaidHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("routeId")
		d, err := deps.Proximity.UnmarkPaid(c.UserContext(), id)
		if errors.Is(err, domain.ErrRouteNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(d)
	}
}

// ClearPassesHandler wipes the whole ledger.
func ClearPassesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Proximity.ClearPasses(c.UserContext()))
	}
}

// fixRequest is the body of POST /v1/fixes. Accuracy is informational
// only; it is carried through but never enters distance math.
type fixRequest struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Accuracy float64  `json:"accuracy"`
}

// PostFixHandler feeds one location fix through the engine and returns
// the resulting decision.
func PostFixHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fixRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}
		if *req.Lat < -90 || *req.Lat > 90 || *req.Lon < -180 || *req.Lon > 180 {
			return errBadRequest(c, "lat must be in [-90,90] and lon in [-180,180]")
		}
		if req.Accuracy < 0 {
			return errBadRequest(c, "accuracy must be non-negative")
		}

		d, err := deps.Proximity.OnFix(c.UserContext(), domain.Fix{
			Lat:      *req.Lat,
			Lon:      *req.Lon,
			Accuracy: req.Accuracy,
		})
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(d)
	}
}

// GetDecisionHandler returns the latest decision. When the location
// stream goes quiet the value stays stale-but-valid; it never resets.
func GetDecisionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "no-store")
		return c.JSON(deps.Proximity.Current())
	}
}

// SelectRouteHandler applies an explicit route selection: show-info
// for that route regardless of distance, until cleared.
func SelectRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("routeId")
		d, err := deps.Proximity.Select(c.UserContext(), id)
		if errors.Is(err, domain.ErrRouteNotFound) {
			return errNotFound(c, "route not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(d)
	}
}

// ClearSelectionHandler drops the explicit selection; automatic
// proximity decisions take over again.
func ClearSelectionHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := deps.Proximity.ClearSelection(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(d)
	}
}
