package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/service"
)

// AnalyticsHandler serves routing metrics and operational counters.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	routing   *service.RoutingService
	metrics   *observability.Metrics
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService, routing *service.RoutingService, metrics *observability.Metrics) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, routing: routing, metrics: metrics}
}

// RoutingMetrics GET /analytics/routing.
func (h *AnalyticsHandler) RoutingMetrics(c *fiber.Ctx) error {
	metrics, err := h.analytics.RoutingMetrics(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": metrics})
}

// RerouteNow POST /routing/sweep runs one reroute sweep immediately.
func (h *AnalyticsHandler) RerouteNow(c *fiber.Ctx) error {
	summary, err := h.routing.RerouteOpenTickets(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// Metrics GET /metrics returns the in-process request and routing counters.
func (h *AnalyticsHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(h.metrics.Snapshot())
}
