//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/sztanko/madeira-pass/internal/adapters/http"
	"github.com/sztanko/madeira-pass/internal/adapters/postgres"
	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
	"github.com/sztanko/madeira-pass/internal/pkg/config"
)

// setupTestDB connects to the configured test database.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("madeirapass-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// seedCatalogue upserts a small catalogue through the repo and returns
// the routes in import order.
func seedCatalogue(t *testing.T, db *postgres.DB) []domain.Route {
	t.Helper()

	routes := []domain.Route{
		{
			ID:              "PR8",
			Name:            "Vereda da Ponta de Sao Lourenco",
			Island:          "Madeira",
			RequiresPayment: true,
			Geometry: domain.NewPolyline([]domain.Point{
				{Lat: 32.75, Lon: -16.95},
				{Lat: 32.76, Lon: -16.94},
				{Lat: 32.77, Lon: -16.93},
			}),
		},
		{
			ID:              "PR15",
			Name:            "Vereda do Referta",
			Island:          "Madeira",
			RequiresPayment: false,
			Geometry: domain.NewPolyline([]domain.Point{
				{Lat: 32.78, Lon: -16.85},
				{Lat: 32.79, Lon: -16.84},
			}),
		},
	}

	repo := postgres.NewCatalogueRepo(db)
	if err := repo.UpsertRoutes(context.Background(), routes); err != nil {
		t.Fatalf("seed routes: %v", err)
	}
	if err := repo.UpsertStatuses(context.Background(), map[string]domain.RouteStatus{
		"PR8": domain.StatusOpen,
	}); err != nil {
		t.Fatalf("seed statuses: %v", err)
	}
	return routes
}

// setupIntegrationApp loads the catalogue from Postgres, exactly as
// cmd/api does with catalog.source=postgres.
func setupIntegrationApp(t *testing.T, db *postgres.DB) *fiber.App {
	t.Helper()

	repo := postgres.NewCatalogueRepo(db)
	loaded, err := repo.LoadRoutes(context.Background())
	if err != nil {
		t.Fatalf("load routes: %v", err)
	}

	index := usecases.NewRouteIndex()
	if err := index.Load(loaded); err != nil {
		t.Fatalf("index load: %v", err)
	}

	ledger := usecases.NewPassLedger(&mockPassStore{}, nil)
	engine := usecases.NewEngine(index, ledger)

	deps := &handler.Dependencies{
		Routes:    usecases.NewRouteService(index, repo, nil),
		Proximity: usecases.NewProximityService(engine, ledger, index, nil),
		Ledger:    ledger,
		DB:        db,
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func TestIntegration_CatalogueRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seeded := seedCatalogue(t, db)
	app := setupIntegrationApp(t, db)

	req := httptest.NewRequest("GET", "/v1/routes", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Data []domain.Route `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) < len(seeded) {
		t.Fatalf("expected at least %d routes, got %d", len(seeded), len(result.Data))
	}
	// Position column must preserve import order for tie-break parity
	// with the file-backed catalogue.
	if result.Data[0].ID != "PR8" {
		t.Errorf("expected PR8 first (import order), got %s", result.Data[0].ID)
	}
}

func TestIntegration_NearestFromPostgresGeometry(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seedCatalogue(t, db)
	app := setupIntegrationApp(t, db)

	req := httptest.NewRequest("GET", "/v1/routes/nearest?lat=32.751&lon=-16.949", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Route           *domain.Route `json:"route"`
		WithinThreshold bool          `json:"within_threshold"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Route == nil || result.Route.ID != "PR8" || !result.WithinThreshold {
		t.Errorf("expected PR8 within threshold, got %+v", result)
	}
}

func TestIntegration_StatusFeedFromPostgres(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seedCatalogue(t, db)
	app := setupIntegrationApp(t, db)

	req := httptest.NewRequest("GET", "/v1/routes/PR8/status", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Status domain.RouteStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Status != domain.StatusOpen {
		t.Errorf("expected open, got %q", result.Status)
	}
}
