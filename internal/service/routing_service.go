package service

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/triage"
	apperrors "github.com/spec-kit/triage-service/pkg/util/errorutil"
)

// RerouteBatchSize caps how many OPEN tickets one sweep examines.
const RerouteBatchSize = 200

// RoutingService assigns tickets to agents.
type RoutingService struct {
	tickets     repository.TicketRepository
	agents      repository.AgentRepository
	assignments repository.AssignmentCommitter
	history     historyRecorder
	dispatcher  events.Dispatcher
	router      *triage.Router
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         Clock
	concurrency int
}

// RoutingDependencies bundles collaborators for the routing service.
type RoutingDependencies struct {
	TicketRepo         repository.TicketRepository
	AgentRepo          repository.AgentRepository
	Assignments        repository.AssignmentCommitter
	HistoryRepo        repository.TicketHistoryRepository
	Dispatcher         events.Dispatcher
	Lifecycle          *triage.Lifecycle
	Metrics            *observability.Metrics
	Logger             *zap.Logger
	Now                Clock
	RerouteConcurrency int
}

// RouteOutcome describes a committed routing decision.
type RouteOutcome struct {
	Ticket *domain.Ticket
	Agent  domain.Agent
	Result triage.RouteResult
	// Attempts counts commit attempts, more than one when a higher ranked
	// agent filled up between scoring and commit.
	Attempts int
}

// RerouteSummary reports one sweep over OPEN unassigned tickets.
type RerouteSummary struct {
	Scanned    int `json:"scanned"`
	Assigned   int `json:"assigned"`
	Unroutable int `json:"unroutable"`
	// Skipped counts tickets that were closed or picked up by someone else
	// after the sweep listed them.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	now := deps.Now.orDefault()
	lifecycle := deps.Lifecycle
	if lifecycle == nil {
		lifecycle = triage.NewLifecycle(triage.Permissive, now)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := deps.RerouteConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RoutingService{
		tickets:     deps.TicketRepo,
		agents:      deps.AgentRepo,
		assignments: deps.Assignments,
		history:     historyRecorder{repo: deps.HistoryRepo, now: now},
		dispatcher:  deps.Dispatcher,
		router:      triage.NewRouter(lifecycle),
		metrics:     deps.Metrics,
		logger:      logger,
		now:         now,
		concurrency: concurrency,
	}
}

// RouteTicket picks the best eligible agent for the ticket and commits the
// assignment, falling back down the ranking when a commit loses a race.
func (s *RoutingService) RouteTicket(ctx context.Context, ticketID string, actor events.Actor) (*RouteOutcome, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	return s.route(ctx, ticket, actor, s.router.Assign, true)
}

func (s *RoutingService) route(ctx context.Context, ticket *domain.Ticket, actor events.Actor, assign repository.AssignFunc, announceFailure bool) (*RouteOutcome, error) {
	details := map[string]any{"ticket_id": ticket.ID}
	if err := triage.Routable(ticket.Status); err != nil {
		return nil, mapError(err, "ticket", details)
	}

	candidates, err := s.agents.ListCandidates(ctx)
	if err != nil {
		s.metrics.RecordRouting(observability.RoutingFailed)
		return nil, apperrors.MapError(err)
	}

	selection, err := triage.SelectAgent(ticket, candidates)
	if err != nil {
		return nil, s.routingFailed(ctx, ticket, actor, err, announceFailure)
	}

	attempts := 0
	for _, candidate := range selection.Ranking {
		if candidate.Total <= 0 {
			break
		}
		attempts++
		outcome, err := s.assignments.CommitAssignment(ctx, ticket.ID, candidate.AgentID, assign)
		if err != nil {
			if errors.Is(err, triage.ErrAgentAtCapacity) || errors.Is(err, triage.ErrAgentUnavailable) {
				s.metrics.RecordRouting(observability.RoutingContended)
				s.logger.Debug("routing candidate lost race",
					zap.String("ticket_id", ticket.ID),
					zap.String("agent_id", candidate.AgentID),
					zap.Error(err),
				)
				continue
			}
			s.metrics.RecordRouting(observability.RoutingFailed)
			return nil, mapError(err, "ticket", details)
		}

		result := triage.RouteResult{
			AgentID:   candidate.AgentID,
			Score:     candidate.Total,
			Rationale: candidate.Rationale(),
			Ranking:   selection.Ranking,
		}
		s.afterAssignment(ctx, outcome, actor, result)
		return &RouteOutcome{Ticket: outcome.Ticket, Agent: outcome.Agent, Result: result, Attempts: attempts}, nil
	}

	return nil, s.routingFailed(ctx, ticket, actor, triage.ErrNoEligibleAgent, announceFailure)
}

// AssignTicket assigns a ticket to a chosen agent through the same
// capacity gate as automatic routing.
func (s *RoutingService) AssignTicket(ctx context.Context, ticketID, agentID string, actor events.Actor) (*RouteOutcome, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, mapError(err, "agent", map[string]any{"agent_id": agentID})
	}

	outcome, err := s.assignments.CommitAssignment(ctx, ticket.ID, agent.ID, s.router.Assign)
	if err != nil {
		return nil, mapError(err, "ticket", map[string]any{"ticket_id": ticketID, "agent_id": agentID})
	}

	// score against the load the agent had before taking this ticket
	before := outcome.Agent
	before.CurrentTicketCount--
	score, _ := triage.ScoreAgent(&outcome.Previous, before)
	result := triage.RouteResult{AgentID: agent.ID, Score: score.Total, Rationale: "manual assignment"}
	s.afterAssignment(ctx, outcome, actor, result)
	return &RouteOutcome{Ticket: outcome.Ticket, Agent: outcome.Agent, Result: result, Attempts: 1}, nil
}

// RerouteOpenTickets routes every OPEN unassigned ticket it can, oldest
// first, with bounded concurrency. Unroutable tickets stay OPEN for the
// next sweep. Each commit re-checks the locked row, so a ticket closed or
// assigned after the listing is skipped rather than overwritten.
func (s *RoutingService) RerouteOpenTickets(ctx context.Context) (RerouteSummary, error) {
	status := domain.TicketStatusOpen
	pending, err := s.tickets.List(ctx, repository.TicketFilter{
		Status:      &status,
		Unassigned:  true,
		OldestFirst: true,
		Limit:       RerouteBatchSize,
	})
	if err != nil {
		return RerouteSummary{}, apperrors.MapError(err)
	}

	var assigned, unroutable, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range pending {
		ticket := pending[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			_, err := s.route(gctx, &ticket, events.SystemActor, s.router.AssignUnowned, false)
			switch {
			case err == nil:
				assigned.Add(1)
			case errors.Is(err, triage.ErrNoEligibleAgent):
				unroutable.Add(1)
			case errors.Is(err, triage.ErrTicketNotRoutable), errors.Is(err, triage.ErrTicketAlreadyAssigned):
				skipped.Add(1)
				s.logger.Debug("reroute skipped ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
			default:
				failed.Add(1)
				s.logger.Warn("reroute failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
			return nil
		})
	}
	waitErr := g.Wait()

	summary := RerouteSummary{
		Scanned:    len(pending),
		Assigned:   int(assigned.Load()),
		Unroutable: int(unroutable.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	return summary, waitErr
}

func (s *RoutingService) afterAssignment(ctx context.Context, outcome *repository.AssignmentOutcome, actor events.Actor, result triage.RouteResult) {
	s.metrics.RecordRouting(observability.RoutingAssigned)
	ticket := outcome.Ticket
	previous := outcome.Previous

	if previous.Status != ticket.Status {
		if err := s.history.statusChange(ctx, ticket.ID, actor, previous.Status, ticket.Status); err != nil {
			s.logger.Warn("record status history failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	if !sameAgent(previous.AssignedAgentID, ticket.AssignedAgentID) {
		if err := s.history.assigneeChange(ctx, ticket.ID, actor, previous.AssignedAgentID, ticket.AssignedAgentID); err != nil {
			s.logger.Warn("record assignee history failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	s.logger.Info("ticket assigned",
		zap.String("ticket_id", ticket.ID),
		zap.String("agent_id", outcome.Agent.ID),
		zap.Float64("score", result.Score),
		zap.String("rationale", result.Rationale),
	)
	publishEvent(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketAssigned, ticket.ID, actor, s.now(),
		events.TicketAssignedPayload{
			TicketNumber:    ticket.TicketNumber,
			Subject:         ticket.Subject,
			Priority:        ticket.Priority,
			PreviousAgentID: previous.AssignedAgentID,
			AgentID:         outcome.Agent.ID,
			AgentName:       outcome.Agent.Name,
			Score:           result.Score,
			Rationale:       result.Rationale,
		}))
}

func (s *RoutingService) routingFailed(ctx context.Context, ticket *domain.Ticket, actor events.Actor, cause error, announce bool) error {
	s.metrics.RecordRouting(observability.RoutingNoEligible)
	if announce {
		s.logger.Info("no eligible agent", zap.String("ticket_id", ticket.ID))
		publishEvent(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTicketRoutingFailed, ticket.ID, actor, s.now(),
			events.TicketRoutingFailedPayload{
				TicketNumber: ticket.TicketNumber,
				Priority:     ticket.Priority,
				Reason:       cause.Error(),
			}))
	}
	return mapError(cause, "ticket", map[string]any{"ticket_id": ticket.ID})
}
