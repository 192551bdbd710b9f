package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	routing *service.RoutingService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, routingService *service.RoutingService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService, routing: routingService}
}

// CreateTicket POST /tickets. Open to customers; no bearer token needed.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.tickets.CreateTicket(c.UserContext(), service.TicketCreateInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerID:    req.CustomerID,
		Subject:       req.Subject,
		Description:   req.Description,
	})
	if err != nil {
		return err
	}
	resp := dto.CreateTicketResponse{Ticket: ticketResponse(result.Ticket)}
	if result.Route != nil {
		decision := routingDecision(result.Route)
		resp.Routing = &decision
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": resp})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter := service.TicketListFilter{}
	if raw := c.Query("status"); raw != "" {
		status := normalizeStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("category"); raw != "" {
		category := domain.Category(strings.ToLower(strings.TrimSpace(raw)))
		filter.Category = &category
	}
	if raw := c.Query("priority"); raw != "" {
		priority := domain.TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
		filter.Priority = &priority
	}
	if raw := c.Query("assigned_to"); raw != "" {
		filter.AssignedAgentID = &raw
	}
	filter.Limit, filter.Offset = pageParams(c)

	tickets, err := h.tickets.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(string(req.Status)) == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.UserContext(), c.Params("id"), normalizeStatus(string(req.Status)), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.AgentID) == "" {
		return apperrors.NewValidationError("agent_id required", nil)
	}
	outcome, err := h.routing.AssignTicket(c.UserContext(), c.Params("id"), req.AgentID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(outcome)})
}

// RouteTicket POST /tickets/:id/route runs automatic routing on demand.
func (h *TicketsHandler) RouteTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	outcome, err := h.routing.RouteTicket(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": assignmentResponse(outcome)})
}

// AddResponse POST /tickets/:id/responses.
func (h *TicketsHandler) AddResponse(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	isAgent := true
	if req.IsAgentResponse != nil {
		isAgent = *req.IsAgentResponse
	}
	resp, err := h.tickets.AddResponse(c.UserContext(), c.Params("id"), service.ResponseInput{
		Message:              req.Message,
		IsAgentResponse:      isAgent,
		AgentName:            req.AgentName,
		IsAISuggested:        req.IsAISuggested,
		SuggestionConfidence: req.SuggestionConfidence,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(resp)})
}

// ListResponses GET /tickets/:id/responses.
func (h *TicketsHandler) ListResponses(c *fiber.Ctx) error {
	responses, err := h.tickets.ListResponses(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(responses))
	for i := range responses {
		items = append(items, messageResponse(&responses[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	history, err := h.tickets.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

// SuggestResponse POST /tickets/:id/suggest-response.
func (h *TicketsHandler) SuggestResponse(c *fiber.Ctx) error {
	suggestion, err := h.tickets.SuggestResponse(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestion})
}
