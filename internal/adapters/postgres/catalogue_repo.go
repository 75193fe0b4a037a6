package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/core/domain"
)

// CatalogueRepo implements ports.RouteSource, ports.StatusSource and
// ports.CatalogueWriter on Postgres. Geometry is stored as GeoJSON
// jsonb; the position column preserves catalogue file order so a
// Postgres-backed index resolves nearest-route ties exactly like a
// file-backed one.
type CatalogueRepo struct {
	db *DB
}

func NewCatalogueRepo(db *DB) *CatalogueRepo { return &CatalogueRepo{db: db} }

// LoadRoutes reads the whole catalogue in import order.
func (r *CatalogueRepo) LoadRoutes(ctx context.Context) ([]domain.Route, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT route_id, name, island, requires_payment, geometry
		FROM routes ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	defer rows.Close()

	var routes []domain.Route
	for rows.Next() {
		var rt domain.Route
		var geomJSON []byte
		if err := rows.Scan(&rt.ID, &rt.Name, &rt.Island, &rt.RequiresPayment, &geomJSON); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		geom, err := catalog.ParseGeometry(geomJSON)
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", rt.ID, err)
		}
		rt.Geometry = geom
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

// LoadStatuses reads the latest stored status per route.
func (r *CatalogueRepo) LoadStatuses(ctx context.Context) (map[string]domain.RouteStatus, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT route_id, status FROM route_statuses`)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]domain.RouteStatus)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses[id] = domain.ParseRouteStatus(status)
	}
	return statuses, rows.Err()
}

// UpsertRoutes replaces route rows in one batch. The slice index
// becomes the position column.
func (r *CatalogueRepo) UpsertRoutes(ctx context.Context, routes []domain.Route) error {
	batch := &pgx.Batch{}
	for i, rt := range routes {
		geomJSON, err := catalog.EncodeGeometry(rt.Geometry)
		if err != nil {
			return fmt.Errorf("route %s: %w", rt.ID, err)
		}
		batch.Queue(`
			INSERT INTO routes (route_id, name, island, requires_payment, position, geometry, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (route_id) DO UPDATE
			SET name = EXCLUDED.name, island = EXCLUDED.island,
			    requires_payment = EXCLUDED.requires_payment,
			    position = EXCLUDED.position, geometry = EXCLUDED.geometry,
			    updated_at = now()
		`, rt.ID, rt.Name, rt.Island, rt.RequiresPayment, i, geomJSON)
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range routes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// UpsertStatuses replaces status rows in one batch.
func (r *CatalogueRepo) UpsertStatuses(ctx context.Context, statuses map[string]domain.RouteStatus) error {
	batch := &pgx.Batch{}
	for id, status := range statuses {
		batch.Queue(`
			INSERT INTO route_statuses (route_id, status, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (route_id) DO UPDATE
			SET status = EXCLUDED.status, updated_at = now()
		`, id, string(status))
	}

	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range statuses {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}
