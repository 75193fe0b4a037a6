package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/sztanko/madeira-pass/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 240 requests per minute per IP. A live fix stream
	// at GPS cadence is roughly one request per second, so this leaves
	// headroom for the read endpoints on top.
	app.Use(limiter.New(limiter.Config{
		Max:        240,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// /v1/nearest predates the /v1/routes/nearest form; keep the alias
	// alive with sunset headers until clients have moved.
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{
			Path:        "/v1/nearest",
			SunsetDate:  time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC),
			Alternative: "/v1/routes/nearest",
		},
	}))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1 — 15s per-request timeout
	v1 := app.Group("/v1")

	// Catalogue. /routes/nearest must register before /routes/:id.
	v1.Get("/routes", timeout.NewWithContext(ListRoutesHandler(deps), 15*time.Second))
	v1.Get("/routes/nearest", timeout.NewWithContext(NearestRouteHandler(deps), 15*time.Second))
	v1.Get("/routes/:id", timeout.NewWithContext(GetRouteHandler(deps), 15*time.Second))
	v1.Get("/routes/:id/status", timeout.NewWithContext(RouteStatusHandler(deps), 15*time.Second))
	v1.Get("/status", timeout.NewWithContext(StatusesHandler(deps), 15*time.Second))
	v1.Get("/nearest", timeout.NewWithContext(NearestRouteHandler(deps), 15*time.Second))

	// Day passes
	v1.Get("/passes", timeout.NewWithContext(ListPassesHandler(deps), 15*time.Second))
	v1.Put("/passes/:routeId", timeout.NewWithContext(MarkPaidHandler(deps), 15*time.Second))
	v1.Delete("/passes/:routeId", timeout.NewWithContext(UnmarkPaidHandler(deps), 15*time.Second))
	v1.Delete("/passes", timeout.NewWithContext(ClearPassesHandler(deps), 15*time.Second))

	// Engine session
	v1.Post("/fixes", timeout.NewWithContext(PostFixHandler(deps), 15*time.Second))
	v1.Get("/decision", timeout.NewWithContext(GetDecisionHandler(deps), 15*time.Second))
	v1.Post("/selection/:routeId", timeout.NewWithContext(SelectRouteHandler(deps), 15*time.Second))
	v1.Delete("/selection", timeout.NewWithContext(ClearSelectionHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
