package ports

import (
	"context"

	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// RouteSource supplies the trail catalogue. It is read once at startup;
// the loaded set is immutable for the life of the process.
type RouteSource interface {
	LoadRoutes(ctx context.Context) ([]domain.Route, error)
}

// StatusSource supplies the operational status per route id. Optional:
// implementations may return an empty map when no feed is configured.
type StatusSource interface {
	LoadStatuses(ctx context.Context) (map[string]domain.RouteStatus, error)
}

// CatalogueWriter persists catalogue data. Only the importer writes;
// the API process never mutates the catalogue.
type CatalogueWriter interface {
	UpsertRoutes(ctx context.Context, routes []domain.Route) error
	UpsertStatuses(ctx context.Context, statuses map[string]domain.RouteStatus) error
}

// PassStore persists the paid-mark set under a single fixed storage key.
// The serialized form is opaque to the ledger; it only has to round-trip
// route ids and Y-M-D dates losslessly and survive process restarts
// within the same day.
type PassStore interface {
	Load(ctx context.Context) ([]domain.PaidMark, error)
	Save(ctx context.Context, marks []domain.PaidMark) error
}
