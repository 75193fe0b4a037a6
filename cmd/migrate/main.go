// migrate applies the catalogue schema and optionally seeds it from
// the catalogue files, so a Postgres-backed deployment can come up
// from nothing with two commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/adapters/postgres"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
	"github.com/sztanko/madeira-pass/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|status|seed>")
	}

	_ = godotenv.Load()

	cfg, err := config.Load("madeirapass-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db)
	case "status":
		showStatus(ctx, db)
	case "seed":
		seedCatalogue(ctx, db, cfg)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

// ensureVersionTable creates the applied-migrations bookkeeping table.
func ensureVersionTable(ctx context.Context, db *postgres.DB) {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   text PRIMARY KEY,
			applied_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		log.Fatalf("schema_migrations: %v", err)
	}
}

// migrationFiles lists migrations/*.sql sorted by name; the numeric
// prefix is the ordering.
func migrationFiles() []string {
	files, err := filepath.Glob("migrations/*.sql")
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}
	sort.Strings(files)
	return files
}

func runMigrations(ctx context.Context, db *postgres.DB) {
	ensureVersionTable(ctx, db)

	applied := 0
	for _, f := range migrationFiles() {
		var exists bool
		err := db.Pool.QueryRow(ctx,
			`SELECT true FROM schema_migrations WHERE filename = $1`, filepath.Base(f),
		).Scan(&exists)
		if err == nil {
			fmt.Printf("SKIP %s (already applied)\n", f)
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Fatalf("check %s: %v", f, err)
		}

		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		// Each migration runs in its own transaction together with its
		// bookkeeping row, so a failure leaves no half-applied file.
		tx, err := db.Pool.Begin(ctx)
		if err != nil {
			log.Fatalf("begin: %v", err)
		}
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("exec %s: %v", f, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_migrations (filename) VALUES ($1)`, filepath.Base(f),
		); err != nil {
			_ = tx.Rollback(ctx)
			log.Fatalf("record %s: %v", f, err)
		}
		if err := tx.Commit(ctx); err != nil {
			log.Fatalf("commit %s: %v", f, err)
		}

		fmt.Printf("OK   %s\n", f)
		applied++
	}

	log.Printf("migrations complete, %d applied", applied)
}

func showStatus(ctx context.Context, db *postgres.DB) {
	ensureVersionTable(ctx, db)

	appliedAt := map[string]string{}
	rows, err := db.Pool.Query(ctx,
		`SELECT filename, applied_at::text FROM schema_migrations ORDER BY filename`)
	if err != nil {
		log.Fatalf("query: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, at string
		if err := rows.Scan(&name, &at); err != nil {
			log.Fatalf("scan: %v", err)
		}
		appliedAt[name] = at
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("query: %v", err)
	}

	for _, f := range migrationFiles() {
		if at, ok := appliedAt[filepath.Base(f)]; ok {
			fmt.Printf("applied  %s  (%s)\n", f, at)
		} else {
			fmt.Printf("pending  %s\n", f)
		}
	}
}

// seedCatalogue imports the configured catalogue files into the
// freshly migrated tables. Same validation gate as the importer.
func seedCatalogue(ctx context.Context, db *postgres.DB, cfg *config.Config) {
	routes, err := catalog.NewFileSource(cfg.Catalog.Path).LoadRoutes(ctx)
	if err != nil {
		log.Fatalf("load catalogue: %v", err)
	}
	if err := usecases.NewRouteIndex().Load(routes); err != nil {
		log.Fatalf("catalogue rejected: %v", err)
	}

	repo := postgres.NewCatalogueRepo(db)
	if err := repo.UpsertRoutes(ctx, routes); err != nil {
		log.Fatalf("upsert routes: %v", err)
	}
	log.Printf("seeded %d routes from %s", len(routes), cfg.Catalog.Path)

	if cfg.Catalog.StatusPath == "" {
		return
	}
	statuses, err := catalog.NewStatusFile(cfg.Catalog.StatusPath).LoadStatuses(ctx)
	if err != nil {
		log.Printf("status feed skipped: %v", err)
		return
	}
	if err := repo.UpsertStatuses(ctx, statuses); err != nil {
		log.Fatalf("upsert statuses: %v", err)
	}
	log.Printf("seeded %d statuses from %s", len(statuses), cfg.Catalog.StatusPath)
}
