package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/repository"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// AgentService manages the agent roster.
type AgentService struct {
	agents  repository.AgentRepository
	tickets repository.TicketRepository
	now     Clock
}

// AgentDependencies bundles repositories for the agent service.
type AgentDependencies struct {
	AgentRepo  repository.AgentRepository
	TicketRepo repository.TicketRepository
	Now        Clock
}

// AgentCreateInput describes a new agent. A nil MaxTickets applies the
// default capacity; a nil IsAvailable means available.
type AgentCreateInput struct {
	Name                   string
	Email                  string
	Expertise              []string
	MaxTickets             *int
	IsAvailable            *bool
	AvgResolutionTimeHours float64
	SatisfactionScore      float64
}

// AgentUpdateInput carries optional field changes.
type AgentUpdateInput struct {
	Name                   *string
	Email                  *string
	Expertise              *[]string
	MaxTickets             *int
	IsAvailable            *bool
	IsActive               *bool
	AvgResolutionTimeHours *float64
	SatisfactionScore      *float64
}

// AgentListFilter defines listing parameters.
type AgentListFilter struct {
	Active    *bool
	Available *bool
	Limit     int
	Offset    int
}

// AgentStats summarizes an agent's workload and performance.
type AgentStats struct {
	AgentID  string `json:"agent_id"`
	Name     string `json:"name"`
	// Workload counts tickets still being worked: TotalActive is Open plus
	// InProgress.
	Workload struct {
		Open        int `json:"open"`
		InProgress  int `json:"in_progress"`
		TotalActive int `json:"total_active"`
	} `json:"current_workload"`
	Performance struct {
		TotalHandled           int     `json:"total_handled"`
		Resolved               int     `json:"resolved"`
		AvgResolutionTimeHours float64 `json:"avg_resolution_time_hours"`
		SatisfactionScore      float64 `json:"satisfaction_score"`
	} `json:"performance"`
	// Capacity counts every assigned ticket that is not CLOSED, so a
	// RESOLVED ticket still holds a slot until it is closed. CurrentTickets
	// is Workload.TotalActive plus Performance.Resolved.
	Capacity struct {
		MaxTickets     int `json:"max_tickets"`
		CurrentTickets int `json:"current_tickets"`
		AvailableSlots int `json:"available_slots"`
	} `json:"capacity"`
}

// NewAgentService constructs the service.
func NewAgentService(deps AgentDependencies) *AgentService {
	return &AgentService{agents: deps.AgentRepo, tickets: deps.TicketRepo, now: deps.Now.orDefault()}
}

// CreateAgent validates and stores a new agent. Emails are unique.
func (s *AgentService) CreateAgent(ctx context.Context, input AgentCreateInput) (*domain.Agent, error) {
	maxTickets := domain.DefaultMaxTickets
	if input.MaxTickets != nil {
		maxTickets = *input.MaxTickets
	}
	available := true
	if input.IsAvailable != nil {
		available = *input.IsAvailable
	}

	agent, err := domain.NewAgent(domain.AgentInput{
		Name:                   input.Name,
		Email:                  input.Email,
		Expertise:              input.Expertise,
		MaxTickets:             maxTickets,
		IsActive:               true,
		IsAvailable:            available,
		AvgResolutionTimeHours: input.AvgResolutionTimeHours,
		SatisfactionScore:      input.SatisfactionScore,
	})
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error(), nil)
	}
	now := s.now()
	agent.ID = uuid.NewString()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	if err := s.agents.Create(ctx, &agent); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": agent.Email})
		}
		return nil, apperrors.MapError(err)
	}
	return &agent, nil
}

// GetAgent fetches an agent with its live ticket count.
func (s *AgentService) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, mapError(err, "agent", map[string]any{"agent_id": agentID})
	}
	return agent, nil
}

// ListAgents returns agents in roster order.
func (s *AgentService) ListAgents(ctx context.Context, filter AgentListFilter) ([]domain.Agent, error) {
	agents, err := s.agents.List(ctx, repository.AgentFilter{
		Active:    filter.Active,
		Available: filter.Available,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// UpdateAgent applies the provided fields and re-validates the agent.
// Lowering capacity below the live count is allowed: the agent simply
// receives nothing new until tickets close. The edit runs against the
// locked row, so resolution stats recorded meanwhile are kept.
func (s *AgentService) UpdateAgent(ctx context.Context, agentID string, input AgentUpdateInput) (*domain.Agent, error) {
	details := map[string]any{"agent_id": agentID}
	updated, err := s.agents.Modify(ctx, agentID, func(agent *domain.Agent) error {
		next, err := domain.NewAgent(input.apply(*agent))
		if err != nil {
			return apperrors.NewValidationError(err.Error(), details)
		}
		next.ID = agent.ID
		next.CreatedAt = agent.CreatedAt
		next.UpdatedAt = s.now()
		next.CurrentTicketCount = agent.CurrentTicketCount
		*agent = next
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			email := ""
			if input.Email != nil {
				email = strings.ToLower(strings.TrimSpace(*input.Email))
			}
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, mapError(err, "agent", details)
	}
	return updated, nil
}

// apply overlays the set fields on the agent's current values.
func (input AgentUpdateInput) apply(agent domain.Agent) domain.AgentInput {
	in := domain.AgentInput{
		Name:                   agent.Name,
		Email:                  agent.Email,
		Expertise:              agent.Expertise,
		MaxTickets:             agent.MaxTickets,
		IsActive:               agent.IsActive,
		IsAvailable:            agent.IsAvailable,
		TotalHandled:           agent.TotalHandled,
		AvgResolutionTimeHours: agent.AvgResolutionTimeHours,
		SatisfactionScore:      agent.SatisfactionScore,
	}
	if input.Name != nil {
		in.Name = *input.Name
	}
	if input.Email != nil {
		in.Email = *input.Email
	}
	if input.Expertise != nil {
		in.Expertise = *input.Expertise
	}
	if input.MaxTickets != nil {
		in.MaxTickets = *input.MaxTickets
	}
	if input.IsActive != nil {
		in.IsActive = *input.IsActive
	}
	if input.IsAvailable != nil {
		in.IsAvailable = *input.IsAvailable
	}
	if input.AvgResolutionTimeHours != nil {
		in.AvgResolutionTimeHours = *input.AvgResolutionTimeHours
	}
	if input.SatisfactionScore != nil {
		in.SatisfactionScore = *input.SatisfactionScore
	}
	return in
}

// DeactivateAgent soft-deletes an agent. Assigned tickets stay assigned.
func (s *AgentService) DeactivateAgent(ctx context.Context, agentID string) error {
	inactive := false
	_, err := s.UpdateAgent(ctx, agentID, AgentUpdateInput{IsActive: &inactive})
	return err
}

// AgentTickets returns the tickets assigned to an agent.
func (s *AgentService) AgentTickets(ctx context.Context, agentID string, limit, offset int) ([]domain.Ticket, error) {
	if _, err := s.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{AssignedAgentID: &agentID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// Stats summarizes the agent's workload, performance and capacity.
func (s *AgentService) Stats(ctx context.Context, agentID string) (*AgentStats, error) {
	agent, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	counts, err := s.tickets.CountByStatusForAgent(ctx, agentID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := &AgentStats{AgentID: agent.ID, Name: agent.Name}
	stats.Workload.Open = counts[domain.TicketStatusOpen]
	stats.Workload.InProgress = counts[domain.TicketStatusInProgress]
	stats.Workload.TotalActive = stats.Workload.Open + stats.Workload.InProgress
	stats.Performance.TotalHandled = agent.TotalHandled
	stats.Performance.Resolved = counts[domain.TicketStatusResolved]
	stats.Performance.AvgResolutionTimeHours = agent.AvgResolutionTimeHours
	stats.Performance.SatisfactionScore = agent.SatisfactionScore
	stats.Capacity.MaxTickets = agent.MaxTickets
	stats.Capacity.CurrentTickets = agent.CurrentTicketCount
	stats.Capacity.AvailableSlots = agent.FreeSlots()
	return stats, nil
}
