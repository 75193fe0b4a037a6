package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		// Default cache times by endpoint pattern
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case path == "/graphql":
			ttl = "private, max-age=0" // GraphQL varies wildly

		case path == "/v1/decision" || strings.HasPrefix(path, "/v1/passes") ||
			strings.HasPrefix(path, "/v1/selection"):
			ttl = "no-store" // Live session state, never cache

		case strings.HasPrefix(path, "/v1/routes/nearest") || path == "/v1/nearest":
			ttl = "no-store" // Position-dependent

		case strings.HasPrefix(path, "/v1/status") || strings.HasSuffix(path, "/status"):
			ttl = "public, max-age=300" // Status feed refreshes during the day

		case strings.HasPrefix(path, "/v1/routes"):
			ttl = "public, max-age=3600" // Catalogue is immutable per session

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // 5 min default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
