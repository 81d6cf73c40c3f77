package routes

import (
	dashboard_handlers "invites.fest2.fun/handlers/dashboard"

	"github.com/gofiber/fiber/v2"
)

// registerDashboardRoutes mounts aggregate reads plus health and metrics.
func registerDashboardRoutes(app *fiber.App, h *dashboard_handlers.DashboardHandler) {
	app.Get("/health", h.Health)
	app.Get("/metrics", h.Metrics())

	events := app.Group("/api/events/:eventId")
	events.Get("/bundles", h.GetSummary)        // GET /api/events/:eventId/bundles
	events.Get("/bundles/:bundle", h.GetBundle) // GET /api/events/:eventId/bundles/:bundle
	events.Get("/zones", h.GetZoneOccupancy)    // GET /api/events/:eventId/zones
}
