package routes

import (
	dashboard_handlers "invites.fest2.fun/handlers/dashboard"
	link_handlers "invites.fest2.fun/handlers/link"
	panel_handlers "invites.fest2.fun/handlers/panel"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	recoverMiddleware "github.com/gofiber/fiber/v2/middleware/recover"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Invitations *panel_handlers.InvitationHandler
	Dashboard   *dashboard_handlers.DashboardHandler
	Codes       *link_handlers.CodeHandler
}

// SetupRoutes mounts the middlewares and every route group.
func SetupRoutes(app *fiber.App, h Handlers) {
	app.Use(recoverMiddleware.New())
	app.Use(logger.New())

	registerDashboardRoutes(app, h.Dashboard)

	events := app.Group("/api/events/:eventId")
	registerPanelRoutes(events, h.Invitations)
	registerPublicLinkRoutes(events, h.Codes)

	app.Use(notFoundHandler)
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "route not found"})
}
