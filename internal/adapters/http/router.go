package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/wayfinder/internal/pkg/metrics"
)

const openAPIPath = "api/openapi.yaml"

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 300 requests per minute per IP. Gestures are reported
	// over the WebSocket, so REST traffic per user stays low.
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, deps.requestTimeout())
	}

	v1 := app.Group("/v1")
	v1.Get("/places", withTimeout(PlacesHandler(deps)))

	sessions := v1.Group("/sessions")
	sessions.Post("/", withTimeout(CreateSessionHandler(deps)))
	sessions.Get("/:id", GetSessionHandler(deps))
	sessions.Delete("/:id", DeleteSessionHandler(deps))
	sessions.Get("/:id/scene", SceneHandler(deps))
	sessions.Post("/:id/search", withTimeout(SearchHandler(deps)))
	sessions.Post("/:id/results/dismiss", DismissResultsHandler(deps))
	sessions.Post("/:id/destination", withTimeout(SelectDestinationHandler(deps)))
	sessions.Delete("/:id/destination", ClearDestinationHandler(deps))
	sessions.Post("/:id/view/reset", ResetViewHandler(deps))
	sessions.Put("/:id/view", MoveViewHandler(deps))
	sessions.Post("/:id/view/done", ViewDoneHandler(deps))
	sessions.Put("/:id/hover", HoverHandler(deps))
	sessions.Delete("/:id/advisory", DismissAdvisoryHandler(deps))

	// GraphQL
	app.Post("/graphql", withTimeout(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app, openAPIPath)

	// WebSocket
	app.Use("/ws", WebSocketUpgrade(deps))
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}
