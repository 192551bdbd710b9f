package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// AgentsHandler manages the agent roster.
type AgentsHandler struct {
	agents *service.AgentService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agentService *service.AgentService) *AgentsHandler {
	return &AgentsHandler{agents: agentService}
}

// CreateAgent POST /agents.
func (h *AgentsHandler) CreateAgent(c *fiber.Ctx) error {
	var req dto.CreateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.agents.CreateAgent(c.UserContext(), service.AgentCreateInput{
		Name:                   req.Name,
		Email:                  req.Email,
		Expertise:              req.Expertise,
		MaxTickets:             req.MaxTickets,
		IsAvailable:            req.IsAvailable,
		AvgResolutionTimeHours: req.AvgResolutionTimeHours,
		SatisfactionScore:      req.SatisfactionScore,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": agentResponse(agent)})
}

// ListAgents GET /agents?available=true&active=true.
func (h *AgentsHandler) ListAgents(c *fiber.Ctx) error {
	available, err := parseBoolQuery(c, "available")
	if err != nil {
		return err
	}
	active, err := parseBoolQuery(c, "active")
	if err != nil {
		return err
	}
	limit, offset := pageParams(c)
	agents, err := h.agents.ListAgents(c.UserContext(), service.AgentListFilter{
		Active:    active,
		Available: available,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return err
	}
	items := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		items = append(items, agentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetAgent GET /agents/:id.
func (h *AgentsHandler) GetAgent(c *fiber.Ctx) error {
	agent, err := h.agents.GetAgent(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

// UpdateAgent PUT /agents/:id.
func (h *AgentsHandler) UpdateAgent(c *fiber.Ctx) error {
	var req dto.UpdateAgentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	agent, err := h.agents.UpdateAgent(c.UserContext(), c.Params("id"), service.AgentUpdateInput{
		Name:                   req.Name,
		Email:                  req.Email,
		Expertise:              req.Expertise,
		MaxTickets:             req.MaxTickets,
		IsAvailable:            req.IsAvailable,
		IsActive:               req.IsActive,
		AvgResolutionTimeHours: req.AvgResolutionTimeHours,
		SatisfactionScore:      req.SatisfactionScore,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": agentResponse(agent)})
}

// DeactivateAgent DELETE /agents/:id. Agents are never hard-deleted.
func (h *AgentsHandler) DeactivateAgent(c *fiber.Ctx) error {
	if err := h.agents.DeactivateAgent(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AgentTickets GET /agents/:id/tickets.
func (h *AgentsHandler) AgentTickets(c *fiber.Ctx) error {
	limit, offset := pageParams(c)
	tickets, err := h.agents.AgentTickets(c.UserContext(), c.Params("id"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// AgentStats GET /agents/:id/stats.
func (h *AgentsHandler) AgentStats(c *fiber.Ctx) error {
	stats, err := h.agents.Stats(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}
