package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Agents         *handlers.AgentsHandler
	Triage         *handlers.TriageHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Analytics.Metrics)

	v1 := app.Group("/api/v1")
	// customers file tickets without a token
	v1.Post("/tickets", cfg.Tickets.CreateTicket)

	protected := v1.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	admin := auth.RequireRole(domain.AgentRoleAdmin)

	tickets := protected.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/assign", cfg.Tickets.AssignTicket)
	tickets.Post("/:id/route", cfg.Tickets.RouteTicket)
	tickets.Get("/:id/responses", cfg.Tickets.ListResponses)
	tickets.Post("/:id/responses", cfg.Tickets.AddResponse)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Post("/:id/suggest-response", cfg.Tickets.SuggestResponse)

	agents := protected.Group("/agents")
	agents.Get("/", cfg.Agents.ListAgents)
	agents.Post("/", admin, cfg.Agents.CreateAgent)
	agents.Get("/:id", cfg.Agents.GetAgent)
	agents.Put("/:id", admin, cfg.Agents.UpdateAgent)
	agents.Delete("/:id", admin, cfg.Agents.DeactivateAgent)
	agents.Get("/:id/tickets", cfg.Agents.AgentTickets)
	agents.Get("/:id/stats", cfg.Agents.AgentStats)

	signals := protected.Group("/triage")
	signals.Post("/classify", cfg.Triage.Classify)
	signals.Post("/sentiment", cfg.Triage.Sentiment)
	signals.Post("/suggest-response", cfg.Triage.SuggestResponse)

	protected.Get("/analytics/routing", cfg.Analytics.RoutingMetrics)
	protected.Post("/routing/sweep", admin, cfg.Analytics.RerouteNow)
}
