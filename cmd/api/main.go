package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/sztanko/madeira-pass/internal/adapters/catalog"
	"github.com/sztanko/madeira-pass/internal/adapters/http"
	natsadapter "github.com/sztanko/madeira-pass/internal/adapters/nats"
	"github.com/sztanko/madeira-pass/internal/adapters/passfile"
	"github.com/sztanko/madeira-pass/internal/adapters/postgres"
	"github.com/sztanko/madeira-pass/internal/adapters/valkey"
	"github.com/sztanko/madeira-pass/internal/core/domain"
	"github.com/sztanko/madeira-pass/internal/core/ports"
	"github.com/sztanko/madeira-pass/internal/core/usecases"
	"github.com/sztanko/madeira-pass/internal/pkg/config"
	"github.com/sztanko/madeira-pass/internal/pkg/logging"
	"github.com/sztanko/madeira-pass/internal/pkg/metrics"
	"github.com/sztanko/madeira-pass/internal/pkg/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("madeirapass-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database, only when the catalogue lives there
	var db *postgres.DB
	if cfg.Catalog.Source == "postgres" {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
	}

	// Cache
	var cache *valkey.Cache
	if cfg.Valkey.Enabled || cfg.Ledger.Store == "valkey" {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			if cfg.Ledger.Store == "valkey" {
				log.Fatalf("valkey: %v", err)
			}
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer cache.Close()
		}
	}

	// Route catalogue: loaded once at startup, immutable afterwards.
	var routeSource ports.RouteSource
	var statusSource ports.StatusSource
	switch cfg.Catalog.Source {
	case "postgres":
		repo := postgres.NewCatalogueRepo(db)
		routeSource = repo
		statusSource = repo
	default:
		routeSource = catalog.NewFileSource(cfg.Catalog.Path)
		if cfg.Catalog.StatusPath != "" {
			statusSource = catalog.NewStatusFile(cfg.Catalog.StatusPath)
		}
	}

	loadCtx, loadSpan := otel.Tracer("madeirapass-api").Start(ctx, "catalogue.load")
	routes, err := routeSource.LoadRoutes(loadCtx)
	if err != nil {
		log.Fatalf("load catalogue: %v", err)
	}
	index := usecases.NewRouteIndex()
	if err := index.Load(routes); err != nil {
		log.Fatalf("catalogue rejected: %v", err)
	}
	loadSpan.End()
	slog.Info("catalogue loaded", "routes", index.Len(), "source", cfg.Catalog.Source)

	// Pass ledger
	loc, err := cfg.Ledger.Location()
	if err != nil {
		log.Fatalf("ledger: %v", err)
	}
	var passStore ports.PassStore
	if cfg.Ledger.Store == "valkey" {
		passStore = valkey.NewPassStore(cache)
	} else {
		passStore = passfile.NewStore(cfg.Ledger.Path)
	}
	ledger := usecases.NewPassLedger(passStore, loc)

	// NATS: decision fan-out plus the raw-fix ingest path
	var publisher *natsadapter.Publisher
	if cfg.NATS.Enabled {
		publisher, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	// Engine session
	engine := usecases.NewEngine(index, ledger)
	var events ports.EventPublisher
	if publisher != nil {
		events = publisher
	}
	proximity := usecases.NewProximityService(engine, ledger, index, events)

	if publisher != nil {
		sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("fix ingest unavailable", "error", err)
		} else {
			defer sub.Close()
			if err := sub.Subscribe(ctx, func(ctx context.Context, f domain.Fix) error {
				_, err := proximity.OnFix(ctx, f)
				return err
			}); err != nil {
				slog.Warn("fix ingest subscribe failed", "error", err)
			}
		}
	}

	// Raw NATS connection for the WebSocket relay
	var natsConn *nats.Conn
	if cfg.NATS.Enabled {
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	if db != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}

	deps := &http.Dependencies{
		Routes:    usecases.NewRouteService(index, statusSource, cacheSvc),
		Proximity: proximity,
		Ledger:    ledger,
		NATS:      natsConn,
		DB:        db,
		Cache:     cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Madeira Pass API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
