package routes

import (
	link_handlers "invites.fest2.fun/handlers/link"

	"github.com/gofiber/fiber/v2"
)

// registerPublicLinkRoutes mounts the endpoints scanners call at the door.
func registerPublicLinkRoutes(events fiber.Router, h *link_handlers.CodeHandler) {
	events.Get("/codes/:token", h.ValidateCode)                  // GET  /api/events/:eventId/codes/:token
	events.Post("/codes/:token/checkin", h.CheckIn)              // POST /api/events/:eventId/codes/:token/checkin
	events.Post("/wristbands/:wristbandId/access", h.ZoneAccess) // POST /api/events/:eventId/wristbands/:wristbandId/access
}
