package handlers

import (
	"invites.fest2.fun/handlers/apierr"
	"invites.fest2.fun/services"

	"github.com/gofiber/fiber/v2"
)

// CodeHandler answers door scanners.
type CodeHandler struct {
	service services.IInvitationService
}

func NewCodeHandler(service services.IInvitationService) *CodeHandler {
	return &CodeHandler{service: service}
}

// ValidateCode (GET /api/events/:eventId/codes/:token)
// A known but unusable code answers 200 with valid=false; an unknown code answers 404.
func (h *CodeHandler) ValidateCode(c *fiber.Ctx) error {
	result, err := h.service.ValidateCode(c.UserContext(), c.Params("eventId"), c.Params("token"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(result)
}

type checkInBody struct {
	WristbandID string `json:"wristbandId"`
}

// CheckIn (POST /api/events/:eventId/codes/:token/checkin)
// Hands a wristband to the invitation holding the code.
func (h *CodeHandler) CheckIn(c *fiber.Ctx) error {
	var body checkInBody
	if err := c.BodyParser(&body); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}
	checkIn, err := h.service.AssignWristband(c.UserContext(), c.Params("eventId"), c.Params("token"), body.WristbandID)
	if err != nil {
		return apierr.Respond(c, err)
	}
	status := fiber.StatusCreated
	if checkIn.Repeated {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(checkIn)
}

type zoneAccessBody struct {
	ZoneID *int `json:"zoneId"`
}

// ZoneAccess (POST /api/events/:eventId/wristbands/:wristbandId/access)
// A denied move answers 403 with the reason.
func (h *CodeHandler) ZoneAccess(c *fiber.Ctx) error {
	var body zoneAccessBody
	if err := c.BodyParser(&body); err != nil || body.ZoneID == nil {
		return apierr.BadRequest(c, "zoneId is required")
	}
	result, err := h.service.CheckZoneAccess(c.UserContext(), c.Params("eventId"), c.Params("wristbandId"), *body.ZoneID)
	if err != nil {
		return apierr.Respond(c, err)
	}
	if !result.Granted {
		return c.Status(fiber.StatusForbidden).JSON(result)
	}
	return c.JSON(result)
}
