// The importer loads trail catalogues into Postgres for deployments
// running with catalog.source=postgres. It reads a manifest of
// catalogue files (local paths or URLs), validates each one through
// the same index the API uses, and batch-upserts routes and statuses.
// A catalogue that fails validation is skipped whole; partial imports
// would break nearest-route tie ordering.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/adapters/postgres"
	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
	"github.com/sztanko/madeira-pass/internal/pkg/config"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

type Manifest struct {
	Source     string           `json:"source"`
	Catalogues []CatalogueEntry `json:"catalogues"`
}

type CatalogueEntry struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	GeoJSON   string `json:"geojson"`              // local path or http(s) URL
	StatusURL string `json:"status_url,omitempty"` // optional status feed
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("madeirapass-importer")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Load manifest
	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	log.Printf("Madeira Pass importer — %d catalogues from %s", len(manifest.Catalogues), manifest.Source)

	// Filter catalogues (optional CLI arg: slug list)
	slugFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			slugFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 60 * time.Second}
	repo := postgres.NewCatalogueRepo(db)

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent fetches

	for _, entry := range manifest.Catalogues {
		if len(slugFilter) > 0 && !slugFilter[entry.Slug] {
			continue
		}

		wg.Add(1)
		go func(e CatalogueEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := importCatalogue(ctx, repo, client, e); err != nil {
				log.Printf("ERROR [%s]: %v", e.Slug, err)
			}
		}(entry)
	}

	wg.Wait()
	log.Println("import complete")
}

// ---------------------------------------------------------------------------
// Per-catalogue import
// ---------------------------------------------------------------------------

func importCatalogue(ctx context.Context, repo *postgres.CatalogueRepo, client *http.Client, entry CatalogueEntry) error {
	log.Printf("[%s] fetching catalogue from %s", entry.Slug, entry.GeoJSON)

	data, err := fetch(client, entry.GeoJSON)
	if err != nil {
		return fmt.Errorf("fetch catalogue: %w", err)
	}

	routes, err := catalog.ParseRoutes(data)
	if err != nil {
		return fmt.Errorf("parse catalogue: %w", err)
	}

	// Validate before writing anything: the API will refuse a catalogue
	// the index cannot load, so the database must never hold one.
	if err := usecases.NewRouteIndex().Load(routes); err != nil {
		return fmt.Errorf("catalogue rejected: %w", err)
	}

	if err := repo.UpsertRoutes(ctx, routes); err != nil {
		return fmt.Errorf("upsert routes: %w", err)
	}
	log.Printf("[%s]   routes: %d", entry.Slug, len(routes))

	if entry.StatusURL == "" {
		log.Printf("[%s] done", entry.Slug)
		return nil
	}

	statusData, err := fetch(client, entry.StatusURL)
	if err != nil {
		return fmt.Errorf("fetch status feed: %w", err)
	}
	doc, err := catalog.ParseStatusDocument(statusData)
	if err != nil {
		return fmt.Errorf("parse status feed: %w", err)
	}

	statuses := make(map[string]domain.RouteStatus, len(doc.Routes))
	for id, e := range doc.Routes {
		statuses[id] = domain.ParseRouteStatus(e.Status)
	}
	if err := repo.UpsertStatuses(ctx, statuses); err != nil {
		return fmt.Errorf("upsert statuses: %w", err)
	}
	log.Printf("[%s]   statuses: %d", entry.Slug, len(statuses))

	log.Printf("[%s] done", entry.Slug)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fetch reads a local path or an http(s) URL.
func fetch(client *http.Client, src string) ([]byte, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.ReadFile(src)
	}

	resp, err := client.Get(src)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, src)
	}
	return io.ReadAll(resp.Body)
}
