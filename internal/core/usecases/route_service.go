package usecases

import (
	"context"
	"encoding/json"

	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/ports"
	"github.com/sztanko/madeira-pass/internal/pkg/metrics"
)

// RouteService answers read queries over the loaded catalogue and the
// operational status feed. Routes themselves are immutable and served
// straight from the index; statuses are re-read through the source on
// demand because the feed file is refreshed externally during the day.
type RouteService struct {
	index    *RouteIndex
	statuses ports.StatusSource // optional
	cache    ports.CacheService // optional
}

// NewRouteService creates a RouteService. statuses and cache may be nil.
func NewRouteService(index *RouteIndex, statuses ports.StatusSource, cache ports.CacheService) *RouteService {
	return &RouteService{index: index, statuses: statuses, cache: cache}
}

// RouteFilter narrows List results. Zero value means no filtering.
type RouteFilter struct {
	Island          string
	RequiresPayment *bool
}

// List returns catalogue routes in load order, optionally filtered.
func (s *RouteService) List(ctx context.Context, f RouteFilter) []domain.Route {
	all := s.index.All()
	if f.Island == "" && f.RequiresPayment == nil {
		return all
	}

	out := make([]domain.Route, 0, len(all))
	for _, r := range all {
		if f.Island != "" && r.Island != f.Island {
			continue
		}
		if f.RequiresPayment != nil && r.RequiresPayment != *f.RequiresPayment {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Get returns one route by id.
func (s *RouteService) Get(ctx context.Context, id string) (*domain.Route, error) {
	r, ok := s.index.Get(id)
	if !ok {
		return nil, domain.ErrRouteNotFound
	}
	return r, nil
}

// Nearest returns the route closest to the point and its distance in
// meters, plus whether it is within the proximity threshold. An empty
// catalogue yields (nil, +Inf, false).
func (s *RouteService) Nearest(ctx context.Context, lat, lon float64) (*domain.Route, float64, bool) {
	route, dist := s.index.Nearest(domain.Point{Lat: lat, Lon: lon})
	return route, dist, route != nil && dist <= ProximityThresholdMeters
}

// Statuses returns the status map for all routes the feed knows about.
// Reads go through the cache with a short TTL; a missing or failing
// feed degrades to an empty map, never an error surfaced to callers.
func (s *RouteService) Statuses(ctx context.Context) map[string]domain.RouteStatus {
	if s.statuses == nil {
		return map[string]domain.RouteStatus{}
	}

	const cacheKey = "routes:statuses"
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var statuses map[string]domain.RouteStatus
			if err := json.Unmarshal(data, &statuses); err == nil {
				metrics.CacheHits.WithLabelValues("statuses").Inc()
				return statuses
			}
		}
		metrics.CacheMisses.WithLabelValues("statuses").Inc()
	}

	statuses, err := s.statuses.LoadStatuses(ctx)
	if err != nil {
		return map[string]domain.RouteStatus{}
	}

	// Cache for 5 minutes; the upstream file changes at most daily.
	if s.cache != nil {
		if data, err := json.Marshal(statuses); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300)
		}
	}
	return statuses
}

// Status returns one route's operational status, StatusUnknown when the
// feed has no entry. The route must exist in the catalogue.
func (s *RouteService) Status(ctx context.Context, id string) (domain.RouteStatus, error) {
	if _, ok := s.index.Get(id); !ok {
		return domain.StatusUnknown, domain.ErrRouteNotFound
	}
	if st, ok := s.Statuses(ctx)[id]; ok {
		return st, nil
	}
	return domain.StatusUnknown, nil
}
