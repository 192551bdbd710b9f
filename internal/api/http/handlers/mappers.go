package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/triage-service/internal/api/dto"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/service"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

const defaultPageSize = 20

func actorFrom(c *fiber.Ctx) (events.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// pageParams turns page/page_size into limit/offset.
func pageParams(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), defaultPageSize)
	return pageSize, (page - 1) * pageSize
}

func parseBoolQuery(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid boolean", map[string]any{key: raw})
	}
	return &parsed, nil
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                 ticket.ID,
		TicketNumber:       ticket.TicketNumber,
		CustomerName:       ticket.CustomerName,
		CustomerEmail:      ticket.CustomerEmail,
		CustomerID:         ticket.CustomerID,
		Subject:            ticket.Subject,
		Description:        ticket.Description,
		Category:           ticket.Category,
		CategoryConfidence: ticket.CategoryConfidence,
		Sentiment:          ticket.Sentiment,
		SentimentScore:     ticket.SentimentScore,
		UrgencyScore:       ticket.UrgencyScore,
		Priority:           ticket.Priority,
		Status:             ticket.Status,
		AssignedTo:         ticket.AssignedAgentID,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
		ResolvedAt:         ticket.ResolvedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func routingDecision(outcome *service.RouteOutcome) dto.RoutingDecision {
	decision := dto.RoutingDecision{
		AgentID:   outcome.Agent.ID,
		AgentName: outcome.Agent.Name,
		Score:     outcome.Result.Score,
		Rationale: outcome.Result.Rationale,
		Attempts:  outcome.Attempts,
	}
	for _, row := range outcome.Result.Ranking {
		decision.Ranking = append(decision.Ranking, dto.CandidateScore{
			AgentID:     row.AgentID,
			Total:       row.Total,
			Expertise:   row.Expertise,
			Workload:    row.Workload,
			Performance: row.Performance,
			Speed:       row.Speed,
		})
	}
	return decision
}

func assignmentResponse(outcome *service.RouteOutcome) dto.AssignmentResponse {
	return dto.AssignmentResponse{Ticket: ticketResponse(outcome.Ticket), Routing: routingDecision(outcome)}
}

func messageResponse(resp *domain.TicketResponse) dto.MessageResponse {
	return dto.MessageResponse{
		ID:                   resp.ID,
		TicketID:             resp.TicketID,
		Message:              resp.Message,
		IsAgentResponse:      resp.IsAgentResponse,
		AgentName:            resp.AgentName,
		IsAISuggested:        resp.IsAISuggested,
		SuggestionConfidence: resp.SuggestionConfidence,
		CreatedAt:            resp.CreatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}

func agentResponse(agent *domain.Agent) dto.AgentResponse {
	expertise := agent.Expertise
	if expertise == nil {
		expertise = []string{}
	}
	return dto.AgentResponse{
		ID:                     agent.ID,
		Name:                   agent.Name,
		Email:                  agent.Email,
		Expertise:              expertise,
		MaxTickets:             agent.MaxTickets,
		CurrentTicketCount:     agent.CurrentTicketCount,
		IsActive:               agent.IsActive,
		IsAvailable:            agent.IsAvailable,
		TotalHandled:           agent.TotalHandled,
		AvgResolutionTimeHours: agent.AvgResolutionTimeHours,
		SatisfactionScore:      agent.SatisfactionScore,
		CreatedAt:              agent.CreatedAt,
		UpdatedAt:              agent.UpdatedAt,
	}
}

func normalizeStatus(raw string) domain.TicketStatus {
	return domain.TicketStatus(strings.ToUpper(strings.TrimSpace(raw)))
}
