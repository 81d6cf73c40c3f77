package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/handlers/apierr"
	"invites.fest2.fun/models"
	"invites.fest2.fun/pkg/notify"
	"invites.fest2.fun/services"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const (
	streamBuffer    = 64
	streamHeartbeat = 15 * time.Second
)

// InvitationHandler serves the admin invitation operations of one event.
type InvitationHandler struct {
	service services.IInvitationService
}

func NewInvitationHandler(service services.IInvitationService) *InvitationHandler {
	return &InvitationHandler{service: service}
}

// CreateInvitations (POST /api/events/:eventId/invitations)
// Runs one creation batch. A batch whose aggregates could not be merged still
// returns the created ids next to the error.
func (h *InvitationHandler) CreateInvitations(c *fiber.Ctx) error {
	var req services.BatchRequest
	if err := c.BodyParser(&req); err != nil {
		configslog.Log.Warn("CreateInvitations: body could not be parsed", zap.Error(err))
		return apierr.BadRequest(c, "invalid request body")
	}
	req.EventID = c.Params("eventId")

	result, err := h.service.CreateBatch(c.UserContext(), req)
	if err != nil {
		if result == nil {
			return apierr.Respond(c, err)
		}
		return c.Status(apierr.Status(err)).JSON(fiber.Map{
			"invitationIds": result.InvitationIDs,
			"failures":      result.Failures,
			"error":         err.Error(),
		})
	}
	status := fiber.StatusCreated
	if len(result.InvitationIDs) == 0 {
		status = fiber.StatusUnprocessableEntity
	}
	return c.Status(status).JSON(result)
}

type zonesBody struct {
	Zones []models.Zone `json:"zones"`
}

// ConfigureZones (PUT /api/events/:eventId/zones)
func (h *InvitationHandler) ConfigureZones(c *fiber.Ctx) error {
	var body zonesBody
	if err := c.BodyParser(&body); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}
	zones, err := h.service.ConfigureZones(c.UserContext(), c.Params("eventId"), body.Zones)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(zones)
}

// TransitionInvitations (POST /api/events/:eventId/invitations/transition)
func (h *InvitationHandler) TransitionInvitations(c *fiber.Ctx) error {
	var req services.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}
	req.EventID = c.Params("eventId")

	report, err := h.service.Transition(c.UserContext(), req)
	if err != nil {
		if report == nil {
			return apierr.Respond(c, err)
		}
		return c.Status(apierr.Status(err)).JSON(fiber.Map{"report": report, "error": err.Error()})
	}
	return c.JSON(report)
}

type sendRequest struct {
	InvitationIDs []string `json:"invitationIds"`
}

// SendInvitations (POST /api/events/:eventId/invitations/send)
func (h *InvitationHandler) SendInvitations(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}
	report, err := h.service.Send(c.UserContext(), c.Params("eventId"), req.InvitationIDs)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(report)
}

// GetInvitation (GET /api/events/:eventId/invitations/:invitationId)
// The id may be given as "INV0001" or "invitation#INV0001".
func (h *InvitationHandler) GetInvitation(c *fiber.Ctx) error {
	id := c.Params("invitationId")
	if !strings.HasPrefix(id, models.InvitationOperation) {
		id = models.InvitationOperation + id
	}
	inv, err := h.service.GetInvitation(c.UserContext(), c.Params("eventId"), id)
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"invitationId": inv.InvitationID, "invitation": inv})
}

// StreamEvents (GET /api/events/:eventId/invitations/stream)
// Streams item and batch completion events as server-sent events. With
// ?until=batch the stream ends after the first batch event.
func (h *InvitationHandler) StreamEvents(c *fiber.Ctx) error {
	eventID := c.Params("eventId")
	untilBatch := c.Query("until") == "batch"
	sub := h.service.Subscribe(eventID, streamBuffer)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		ticker := time.NewTicker(streamHeartbeat)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					configslog.SLog.Debugf("Event stream for %s closed: %v", eventID, err)
					return
				}
				if untilBatch && ev.Type == notify.TypeBatchCompleted {
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, ev notify.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
		return err
	}
	return w.Flush()
}
