package handlers

import (
	"context"
	"net/http"
	"time"

	"invites.fest2.fun/configs/configslog"
	"invites.fest2.fun/handlers/apierr"
	"invites.fest2.fun/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// DashboardHandler serves aggregate counters and operational endpoints.
type DashboardHandler struct {
	service services.IInvitationService
	metrics http.Handler
	checks  map[string]HealthCheck
}

func NewDashboardHandler(service services.IInvitationService, metrics http.Handler, checks map[string]HealthCheck) *DashboardHandler {
	return &DashboardHandler{service: service, metrics: metrics, checks: checks}
}

// GetSummary (GET /api/events/:eventId/bundles)
func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.service.GetSummary(c.UserContext(), c.Params("eventId"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(summary)
}

// GetBundle (GET /api/events/:eventId/bundles/:bundle)
func (h *DashboardHandler) GetBundle(c *fiber.Ctx) error {
	bundle, err := h.service.GetBundle(c.UserContext(), c.Params("eventId"), c.Params("bundle"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(bundle)
}

// GetZoneOccupancy (GET /api/events/:eventId/zones)
func (h *DashboardHandler) GetZoneOccupancy(c *fiber.Ctx) error {
	occupancy, err := h.service.ZoneOccupancy(c.UserContext(), c.Params("eventId"))
	if err != nil {
		return apierr.Respond(c, err)
	}
	return c.JSON(occupancy)
}

// Health (GET /health)
func (h *DashboardHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	results := fiber.Map{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			configslog.Log.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			status = fiber.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": state, "checks": results})
}

// Metrics (GET /metrics)
func (h *DashboardHandler) Metrics() fiber.Handler {
	return adaptor.HTTPHandler(h.metrics)
}
