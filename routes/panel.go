package routes

import (
	panel_handlers "invites.fest2.fun/handlers/panel"

	"github.com/gofiber/fiber/v2"
)

// registerPanelRoutes mounts the invitation operations under /api/events/:eventId.
func registerPanelRoutes(events fiber.Router, h *panel_handlers.InvitationHandler) {
	invitations := events.Group("/invitations")
	invitations.Post("/", h.CreateInvitations)               // POST /api/events/:eventId/invitations
	invitations.Post("/transition", h.TransitionInvitations) // POST /api/events/:eventId/invitations/transition
	invitations.Post("/send", h.SendInvitations)             // POST /api/events/:eventId/invitations/send
	invitations.Get("/stream", h.StreamEvents)               // GET  /api/events/:eventId/invitations/stream
	invitations.Get("/:invitationId", h.GetInvitation)       // GET  /api/events/:eventId/invitations/:invitationId

	events.Put("/zones", h.ConfigureZones) // PUT /api/events/:eventId/zones
}
